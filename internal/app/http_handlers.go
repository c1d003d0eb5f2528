package app

import (
	"net/http"
	"strconv"

	"storyforest/api/internal/validation"
)

func (s *HTTPServer) handleListBooks(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	books, err := s.service.ListBooks(r.Context(), sessionFrom(r.Context()), skip, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": orEmpty(books)})
}

func (s *HTTPServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.service.GetBook(r.Context(), bookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *HTTPServer) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var in CreateBookInput
	if err := s.decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.service.CreateBook(r.Context(), sessionFrom(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *HTTPServer) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in UpdateBookInput
	if err := s.decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.service.UpdateBook(r.Context(), sessionFrom(r.Context()), bookID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *HTTPServer) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.DeleteBook(r.Context(), sessionFrom(r.Context()), bookID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetTree(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err := s.service.GetTree(r.Context(), sessionFrom(r.Context()), bookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *HTTPServer) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var in CreateNodeInput
	if err := s.decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.CreateNode(r.Context(), sessionFrom(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleGetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.service.GetNodeDetail(r.Context(), sessionFrom(r.Context()), nodeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleEditNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in EditNodeInput
	if err := s.decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.EditNode(r.Context(), sessionFrom(r.Context()), nodeID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.DeleteNode(r.Context(), sessionFrom(r.Context()), nodeID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetPath(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	path, err := s.service.GetPath(r.Context(), sessionFrom(r.Context()), nodeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *HTTPServer) handleExportPath(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.ExportPath(r.Context(), sessionFrom(r.Context()), nodeID, r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	if result.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", result.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	profile, err := s.service.GetUserProfile(r.Context(), sessionFrom(r.Context()), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleListUserNodes(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	skip, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.service.ListUserNodes(r.Context(), sessionFrom(r.Context()), userID, r.URL.Query().Get("status"), skip, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": orEmpty(items)})
}

func (s *HTTPServer) handleListPending(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.service.ListPendingNodes(r.Context(), sessionFrom(r.Context()), skip, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": orEmpty(items)})
}

func (s *HTTPServer) handleAuditNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in AuditInput
	if err := s.decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.AuditNode(r.Context(), sessionFrom(r.Context()), nodeID, in.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.ToggleLike(r.Context(), sessionFrom(r.Context()), nodeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	skip, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	comments, err := s.service.ListComments(r.Context(), sessionFrom(r.Context()), nodeID, skip, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": orEmpty(comments)})
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in CommentInput
	if err := s.decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	comment, err := s.service.CreateComment(r.Context(), sessionFrom(r.Context()), nodeID, in.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			s.fail(w, r, &validation.Error{Fields: map[string]string{"unread": "must be a boolean"}})
			return
		}
	}
	items, err := s.service.ListNotifications(r.Context(), sessionFrom(r.Context()), unreadOnly, skip, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": orEmpty(items)})
}

func (s *HTTPServer) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.UnreadCount(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *HTTPServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.service.MarkAllRead(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": updated})
}
