package app

import (
	"context"
	"log/slog"
	"time"

	"storyforest/api/internal/auth"
	"storyforest/api/internal/config"
	"storyforest/api/internal/export"
	"storyforest/api/internal/notify"
	"storyforest/api/internal/rbac"
	"storyforest/api/internal/search"
	"storyforest/api/internal/store"
	"storyforest/api/internal/story"
)

// Session is the caller behind a request. The zero Session is a guest.
type Session struct {
	Token     string
	User      store.User
	JTI       string
	ExpiresAt time.Time
}

func (s Session) Authenticated() bool {
	return s.User.ID != 0
}

// Actor is the session as a mutating account.
func (s Session) Actor() story.Actor {
	return story.Actor{
		UserID:   s.User.ID,
		Role:     rbac.Normalize(s.User.Role),
		Active:   s.User.IsActive,
		Verified: s.User.IsVerified,
	}
}

// Viewer is the session as a reader.
func (s Session) Viewer() story.Viewer {
	if !s.Authenticated() {
		return story.Guest()
	}
	return story.ViewerFor(s.User.ID, s.User.Role, s.User.IsActive, s.User.IsVerified)
}

type dataStore interface {
	GetUserByID(context.Context, int64) (store.User, error)
	AuthorsByID(context.Context, []int64) (map[int64]story.Author, error)
	UserStats(context.Context, int64, story.Scope) (store.UserStats, error)
	NodeByID(context.Context, int64) (story.Node, error)
	ItemByID(context.Context, int64) (story.Item, error)

	CreateBook(context.Context, story.Book) (story.Book, error)
	GetBook(context.Context, int64) (story.Book, error)
	ListBooks(context.Context, bool, store.Page) ([]story.Book, error)
	UpdateBook(context.Context, int64, func(*story.Book) error) (story.Book, error)
	DeleteBook(context.Context, int64) error

	CreateNode(context.Context, story.Draft, func(*story.Book, *story.Node) (story.Node, error)) (story.Item, error)
	ListBookItems(context.Context, int64, story.Scope) ([]story.Item, error)
	ListUserItems(context.Context, int64, story.Scope, *story.Status, store.Page) ([]story.Item, error)
	ListPendingItems(context.Context, store.Page) ([]story.Item, error)
	AuditNode(context.Context, int64, func(story.Node) (story.Transition, error), func(story.Node, story.Transition) *notify.Notification) (story.Item, story.Transition, error)
	EditNode(context.Context, int64, func(*story.Node) error) (story.Item, error)
	DeleteNode(context.Context, int64, func(story.Node, bool) error) (story.Node, error)

	ToggleLike(context.Context, int64, int64, func(story.Node) error, func(story.Node) *notify.Notification) (store.LikeResult, error)
	HasLiked(context.Context, int64, int64) (bool, error)
	CreateComment(context.Context, int64, int64, string, func(story.Node) error, func(story.Node, int64) *notify.Notification) (store.Comment, error)
	ListComments(context.Context, int64, store.Page) ([]store.Comment, error)

	InsertNotification(context.Context, notify.Notification) (notify.Notification, error)
	ListNotifications(context.Context, int64, bool, store.Page) ([]store.NotificationItem, error)
	UnreadCount(context.Context, int64) (int, error)
	MarkAllRead(context.Context, int64) (int64, error)

	Ping(ctx context.Context) error
}

// Deps are the optional collaborators of a Service. Nil fields fall back to
// in-process defaults: a Dispatcher over the store, no search index and an
// export service without archive.
type Deps struct {
	Publisher notify.Publisher
	Search    *search.Service
	Exporter  *export.Service
	Logger    *slog.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	publisher notify.Publisher
	search    *search.Service
	exporter  *export.Service
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Deps) *Service {
	return newService(cfg, dataStore, deps)
}

func newService(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = notify.NewDispatcher(dataStore, logger)
	}
	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.NewService(nil, logger)
	}
	if cfg.MaxPathDepth <= 0 {
		cfg.MaxPathDepth = story.DefaultMaxPathDepth
	}
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		publisher: publisher,
		search:    deps.Search,
		exporter:  exporter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SessionFromToken resolves a bearer token to the account behind it.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		User:      user,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// IssueToken signs an access token for user.
func (s *Service) IssueToken(user store.User, ttl time.Duration) (string, error) {
	return auth.IssueToken([]byte(s.cfg.JWTSecret), auth.NewClaims(user.ID, user.Username, user.Role, ttl))
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until background notification and index work has drained.
func (s *Service) Wait() {
	if d, ok := s.publisher.(*notify.Dispatcher); ok {
		d.Wait()
	}
	s.search.Wait()
}

func page(skip, limit int) store.Page {
	return store.Page{Skip: skip, Limit: limit}
}
