package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyforest/api/internal/auth"
	"storyforest/api/internal/metrics"
	"storyforest/api/internal/ratelimit"
	"storyforest/api/internal/store"
	"storyforest/api/internal/validation"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	limiter    *ratelimit.KeyedRateLimiter
	validate   *validation.Validator
	logger     *slog.Logger
	router     chi.Router
}

// NewHTTPServer wires the routes. A nil limiter leaves mutations unthrottled.
func NewHTTPServer(service *Service, corsOrigin string, limiter *ratelimit.KeyedRateLimiter) *HTTPServer {
	s := &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		limiter:    limiter,
		validate:   validation.New(),
		logger:     service.logger,
	}
	s.router = s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(preflight)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.optionalSession)

		r.Get("/health", s.handleHealth)
		r.Head("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/session", s.handleSession)

		r.Get("/books", s.handleListBooks)
		r.Get("/books/{bookID}", s.handleGetBook)
		r.Get("/books/{bookID}/tree", s.handleGetTree)
		r.Get("/nodes/{nodeID}", s.handleGetNode)
		r.Get("/nodes/{nodeID}/path", s.handleGetPath)
		r.Get("/nodes/{nodeID}/path/export", s.handleExportPath)
		r.Get("/nodes/{nodeID}/comments", s.handleListComments)
		r.Get("/users/{userID}", s.handleGetUser)
		r.Get("/users/{userID}/nodes", s.handleListUserNodes)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/notifications", s.handleListNotifications)
			r.Get("/notifications/unread-count", s.handleUnreadCount)
			r.Get("/admin/nodes/pending", s.handleListPending)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit)

				r.Put("/notifications/read", s.handleMarkAllRead)
				r.Post("/books", s.handleCreateBook)
				r.Patch("/books/{bookID}", s.handleUpdateBook)
				r.Delete("/books/{bookID}", s.handleDeleteBook)
				r.Post("/nodes", s.handleCreateNode)
				r.Patch("/nodes/{nodeID}", s.handleEditNode)
				r.Delete("/nodes/{nodeID}", s.handleDeleteNode)
				r.Post("/nodes/{nodeID}/like", s.handleToggleLike)
				r.Post("/nodes/{nodeID}/comments", s.handleCreateComment)
				r.Patch("/admin/nodes/{nodeID}/audit", s.handleAuditNode)
			})
		})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if !session.Authenticated() {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userName":      session.User.Username,
		"userId":        session.User.ID,
		"role":          session.User.Role,
		"verified":      session.User.IsVerified,
	})
}

// preflight answers CORS preflight requests before routing.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) Session {
	session, _ := ctx.Value(sessionKey{}).(Session)
	return session
}

// optionalSession attaches the caller's account when a usable bearer token
// is present. Missing, malformed or expired tokens read as a guest.
func (s *HTTPServer) optionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, store.ErrUserNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			s.logger.ErrorContext(r.Context(), "session lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r.Context()).Authenticated() {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit throttles mutations per account. Must run after requireSession.
func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			key := "user:" + strconv.FormatInt(sessionFrom(r.Context()).User.ID, 10)
			if !s.limiter.Allow(key) {
				metrics.RateLimited.Inc()
				s.logger.WarnContext(r.Context(), "rate limit exceeded", "key", key, "path", r.URL.Path)
				s.fail(w, r, errRateLimited)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		// A route context created here is reused by the router, which lets
		// the pattern be read back once the request is served.
		rctx := chi.NewRouteContext()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		route := rctx.RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(started)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(writer.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.InfoContext(ctx, "request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, message, details)
}

var errInvalidJSON = domainError(http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)

// decodeBody reads a JSON body into target and validates it.
func (s *HTTPServer) decodeBody(r *http.Request, target any) error {
	if r.Body != nil {
		defer r.Body.Close()
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(target); err != nil && !errors.Is(err, http.ErrBodyReadAfterClose) {
			return errInvalidJSON
		}
	}
	return s.validate.Validate(target)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &validation.Error{Fields: map[string]string{name: "must be a positive integer"}}
	}
	return id, nil
}

// pageParams reads skip and limit. Out-of-range limits are clamped by the
// store; malformed numbers are rejected.
func pageParams(r *http.Request) (skip, limit int, err error) {
	query := r.URL.Query()
	fields := map[string]string{}
	if raw := query.Get("skip"); raw != "" {
		if skip, err = strconv.Atoi(raw); err != nil || skip < 0 {
			fields["skip"] = "must be a non-negative integer"
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			fields["limit"] = "must be a positive integer"
		}
	}
	if len(fields) > 0 {
		return 0, 0, &validation.Error{Fields: fields}
	}
	return skip, limit, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
