package app

import (
	"context"
	"strings"

	"storyforest/api/internal/notify"
	"storyforest/api/internal/rbac"
	"storyforest/api/internal/store"
	"storyforest/api/internal/story"
)

type CommentInput struct {
	Content string `json:"content" validate:"required,notblank,max=2000"`
}

// CreateComment stores a comment on a node the caller can see and notifies
// the node's author in the same transaction.
func (s *Service) CreateComment(ctx context.Context, session Session, nodeID int64, content string) (store.Comment, error) {
	actor := session.Actor()
	if err := actor.CheckAccount(rbac.ActionComment); err != nil {
		return store.Comment{}, err
	}
	return s.store.CreateComment(ctx, actor.UserID, nodeID, strings.TrimSpace(content),
		func(node story.Node) error {
			return story.CheckEngage(actor, node, rbac.ActionComment)
		},
		func(node story.Node, commentID int64) *notify.Notification {
			n := notify.About(notify.TypeCommented, actor.UserID, node.AuthorID, node.ID)
			n.CommentID = &commentID
			return &n
		},
	)
}

// ListComments lists comments oldest first on a node the viewer can see.
func (s *Service) ListComments(ctx context.Context, session Session, nodeID int64, skip, limit int) ([]store.Comment, error) {
	node, err := s.store.NodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if !story.Visible(session.Viewer(), node) {
		return nil, story.ErrNodeNotFound
	}
	return s.store.ListComments(ctx, nodeID, page(skip, limit))
}

func (s *Service) ListNotifications(ctx context.Context, session Session, unreadOnly bool, skip, limit int) ([]store.NotificationItem, error) {
	return s.store.ListNotifications(ctx, session.User.ID, unreadOnly, page(skip, limit))
}

func (s *Service) UnreadCount(ctx context.Context, session Session) (int, error) {
	return s.store.UnreadCount(ctx, session.User.ID)
}

// MarkAllRead marks every unread notification of the caller as read and
// reports how many changed. Repeating it changes nothing.
func (s *Service) MarkAllRead(ctx context.Context, session Session) (int64, error) {
	return s.store.MarkAllRead(ctx, session.User.ID)
}
