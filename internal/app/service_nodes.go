package app

import (
	"context"
	"errors"
	"strings"

	"storyforest/api/internal/export"
	"storyforest/api/internal/metrics"
	"storyforest/api/internal/notify"
	"storyforest/api/internal/rbac"
	"storyforest/api/internal/store"
	"storyforest/api/internal/story"
	"storyforest/api/internal/validation"
)

type CreateNodeInput struct {
	BookID     int64  `json:"bookId" validate:"required,gt=0"`
	ParentID   *int64 `json:"parentId" validate:"omitnil,gt=0"`
	Title      string `json:"title" validate:"max=100"`
	Content    string `json:"content" validate:"required,notblank,min=10"`
	Summary    string `json:"summary" validate:"max=500"`
	BranchName string `json:"branchName" validate:"max=50"`
}

type EditNodeInput struct {
	Title      *string `json:"title" validate:"omitnil,max=100"`
	Content    *string `json:"content" validate:"omitnil,notblank,min=10"`
	Summary    *string `json:"summary" validate:"omitnil,max=500"`
	BranchName *string `json:"branchName" validate:"omitnil,max=50"`
}

type AuditInput struct {
	Status string `json:"status" validate:"required,notblank"`
}

// Tree is a book together with the forest the viewer may see.
type Tree struct {
	Book  story.Book        `json:"book"`
	Nodes []*story.TreeNode `json:"nodes"`
	Total int               `json:"total"`
}

// NodeDetail is a node with its body and whether the viewer likes it.
type NodeDetail struct {
	story.Item
	Liked bool `json:"liked"`
}

func (s *Service) CreateNode(ctx context.Context, session Session, in CreateNodeInput) (story.Item, error) {
	actor := session.Actor()
	draft := story.Draft{
		BookID:     in.BookID,
		ParentID:   in.ParentID,
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		Summary:    strings.TrimSpace(in.Summary),
		BranchName: strings.TrimSpace(in.BranchName),
	}

	var parentAuthor int64
	item, err := s.store.CreateNode(ctx, draft, func(book *story.Book, parent *story.Node) (story.Node, error) {
		node, err := story.PlanNode(actor, draft, book, parent, s.now())
		if err == nil && parent != nil {
			parentAuthor = parent.AuthorID
		}
		return node, err
	})
	if err != nil {
		return story.Item{}, err
	}

	metrics.NodeTransitions.WithLabelValues("", string(item.Status)).Inc()
	s.search.Sync(item)
	if item.ParentID != nil {
		// Runs after commit; a lost notification never undoes the node.
		s.publisher.Publish(ctx, notify.About(notify.TypeBranched, actor.UserID, parentAuthor, *item.ParentID))
	}
	return item, nil
}

// AuditNode sets a node's status. Approval and rejection notify the author
// in the same transaction; a no-op audit notifies nobody.
func (s *Service) AuditNode(ctx context.Context, session Session, nodeID int64, status string) (story.Item, error) {
	actor := session.Actor()
	if err := actor.CheckAccount(rbac.ActionModerate); err != nil {
		return story.Item{}, err
	}
	to, err := story.ParseStatus(status)
	if err != nil {
		return story.Item{}, err
	}

	item, tr, err := s.store.AuditNode(ctx, nodeID,
		func(node story.Node) (story.Transition, error) {
			return story.PlanAudit(actor, node, to)
		},
		func(node story.Node, tr story.Transition) *notify.Notification {
			var typ notify.Type
			switch {
			case tr.Approved():
				typ = notify.TypeApproved
			case tr.Rejected():
				typ = notify.TypeRejected
			default:
				return nil
			}
			n := notify.About(typ, actor.UserID, node.AuthorID, node.ID)
			return &n
		},
	)
	if err != nil {
		return story.Item{}, err
	}

	if tr.Changed() {
		metrics.NodeTransitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
		if tr.Override {
			s.logger.WarnContext(ctx, "status change outside moderation workflow",
				"node_id", nodeID,
				"from", tr.From,
				"to", tr.To,
				"admin_id", actor.UserID,
			)
		}
		s.search.Sync(item)
	}
	return item, nil
}

func (s *Service) GetTree(ctx context.Context, session Session, bookID int64) (Tree, error) {
	viewer := session.Viewer()
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return Tree{}, err
	}
	items, err := s.store.ListBookItems(ctx, bookID, story.VisibilityScope(viewer))
	if err != nil {
		return Tree{}, err
	}
	roots := story.Assemble(story.FilterVisible(viewer, items))
	return Tree{Book: book, Nodes: roots, Total: story.Count(roots)}, nil
}

// GetPath returns the reading path from the root down to nodeID. Any hidden
// node along the way hides the whole path.
func (s *Service) GetPath(ctx context.Context, session Session, nodeID int64) ([]story.Item, error) {
	path, err := story.ResolvePath(ctx, s.store, nodeID, session.Viewer(), s.cfg.MaxPathDepth)
	if errors.Is(err, story.ErrPathCycle) {
		s.logger.ErrorContext(ctx, "ancestry walk did not reach a root", "node_id", nodeID, "max_depth", s.cfg.MaxPathDepth)
	}
	return path, err
}

func (s *Service) GetNodeDetail(ctx context.Context, session Session, nodeID int64) (NodeDetail, error) {
	viewer := session.Viewer()
	item, err := s.store.ItemByID(ctx, nodeID)
	if err != nil {
		return NodeDetail{}, err
	}
	if !story.Visible(viewer, item.Node) {
		return NodeDetail{}, story.ErrNodeNotFound
	}
	detail := NodeDetail{Item: item}
	if viewer.Authed {
		detail.Liked, err = s.store.HasLiked(ctx, viewer.UserID, nodeID)
		if err != nil {
			return NodeDetail{}, err
		}
	}
	return detail, nil
}

func (s *Service) EditNode(ctx context.Context, session Session, nodeID int64, in EditNodeInput) (story.Item, error) {
	patch := story.Patch{
		Title:      trimmed(in.Title),
		Content:    in.Content,
		Summary:    trimmed(in.Summary),
		BranchName: trimmed(in.BranchName),
	}
	if patch.Empty() {
		return story.Item{}, &validation.Error{Fields: map[string]string{"body": "must change at least one field"}}
	}

	actor := session.Actor()
	item, err := s.store.EditNode(ctx, nodeID, func(node *story.Node) error {
		if err := story.CheckEdit(actor, *node); err != nil {
			return err
		}
		patch.Apply(node, s.now())
		return nil
	})
	if err != nil {
		return story.Item{}, err
	}
	s.search.Sync(item)
	return item, nil
}

func (s *Service) DeleteNode(ctx context.Context, session Session, nodeID int64) error {
	actor := session.Actor()
	node, err := s.store.DeleteNode(ctx, nodeID, func(node story.Node, hasChildren bool) error {
		return story.CheckDelete(actor, node, hasChildren)
	})
	if err != nil {
		return err
	}
	s.search.Remove(node.ID)
	s.logger.InfoContext(ctx, "node deleted", "node_id", node.ID, "book_id", node.BookID, "actor_id", actor.UserID)
	return nil
}

// ListUserNodes lists a user's nodes newest first, limited to what the
// viewer may see. status narrows the list further when set.
func (s *Service) ListUserNodes(ctx context.Context, session Session, userID int64, status string, skip, limit int) ([]story.Item, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	var filter *story.Status
	if status != "" {
		parsed, err := story.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &parsed
	}
	viewer := session.Viewer()
	items, err := s.store.ListUserItems(ctx, userID, story.VisibilityScope(viewer), filter, page(skip, limit))
	if err != nil {
		return nil, err
	}
	return story.FilterVisible(viewer, items), nil
}

// ListPendingNodes is the moderation queue, oldest first.
func (s *Service) ListPendingNodes(ctx context.Context, session Session, skip, limit int) ([]story.Item, error) {
	if err := session.Actor().CheckAccount(rbac.ActionModerate); err != nil {
		return nil, err
	}
	return s.store.ListPendingItems(ctx, page(skip, limit))
}

func (s *Service) ToggleLike(ctx context.Context, session Session, nodeID int64) (store.LikeResult, error) {
	actor := session.Actor()
	if err := actor.CheckAccount(rbac.ActionLike); err != nil {
		return store.LikeResult{}, err
	}
	result, err := s.store.ToggleLike(ctx, actor.UserID, nodeID,
		func(node story.Node) error {
			return story.CheckEngage(actor, node, rbac.ActionLike)
		},
		func(node story.Node) *notify.Notification {
			n := notify.About(notify.TypeLiked, actor.UserID, node.AuthorID, node.ID)
			return &n
		},
	)
	if err != nil {
		return store.LikeResult{}, err
	}
	metrics.LikeToggles.WithLabelValues(string(result.Action)).Inc()
	return result, nil
}

// ExportPath renders the reading path ending at nodeID under the same
// visibility rules as GetPath.
func (s *Service) ExportPath(ctx context.Context, session Session, nodeID int64, format string) (*export.Result, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	path, err := s.GetPath(ctx, session, nodeID)
	if err != nil {
		return nil, err
	}
	book, err := s.store.GetBook(ctx, path[0].BookID)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportPath(ctx, book.Title, path, f)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
