package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"storyforest/api/internal/notify"
	"storyforest/api/internal/story"
)

// CreateNode reads the book and parent under a share lock, asks plan for the
// node to insert and writes it, all in one transaction. The returned item is
// reloaded with its author inside the same transaction.
func (s *PostgresStore) CreateNode(ctx context.Context, draft story.Draft, plan func(book *story.Book, parent *story.Node) (story.Node, error)) (story.Item, error) {
	var created story.Item
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var bookRef *story.Book
		book, err := getBook(ctx, tx, draft.BookID, "SHARE")
		switch {
		case err == nil:
			bookRef = &book
		case !errors.Is(err, story.ErrBookNotFound):
			return err
		}

		var parentRef *story.Node
		if draft.ParentID != nil {
			parent, err := getNode(ctx, tx, *draft.ParentID, "SHARE")
			switch {
			case err == nil:
				parentRef = &parent
			case !errors.Is(err, story.ErrNodeNotFound):
				return err
			}
		}

		node, err := plan(bookRef, parentRef)
		if err != nil {
			return err
		}

		var id int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO nodes (book_id, parent_id, author_id, title, content, summary, branch_name, status, depth, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, node.BookID, node.ParentID, node.AuthorID, node.Title, node.Content, node.Summary, node.BranchName,
			string(node.Status), node.Depth, node.PublishedAt).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert node: %w", err)
		}

		created, err = getItem(ctx, tx, id)
		return err
	})
	return created, err
}

// ListBookItems returns the nodes of a book visible under scope, ordered by
// id, without body text.
func (s *PostgresStore) ListBookItems(ctx context.Context, bookID int64, scope story.Scope) ([]story.Item, error) {
	filter, args := scopeFilter(scope, 2)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+treeColumns+`, `+authorColumns+`
		FROM nodes n
		JOIN users u ON u.id = n.author_id
		WHERE n.book_id = $1 AND `+filter+`
		ORDER BY n.id
	`, append([]any{bookID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list book nodes: %w", err)
	}
	return collectItems(rows, "book node")
}

// ListUserItems returns one author's nodes visible under scope, newest first.
func (s *PostgresStore) ListUserItems(ctx context.Context, authorID int64, scope story.Scope, status *story.Status, page Page) ([]story.Item, error) {
	page = page.normalized()
	filter, args := scopeFilter(scope, 5)
	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+treeColumns+`, `+authorColumns+`
		FROM nodes n
		JOIN users u ON u.id = n.author_id
		WHERE n.author_id = $1
			AND ($2::text IS NULL OR n.status = $2::text)
			AND `+filter+`
		ORDER BY n.created_at DESC, n.id DESC
		OFFSET $3 LIMIT $4
	`, append([]any{authorID, statusArg, page.Skip, page.Limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list user nodes: %w", err)
	}
	return collectItems(rows, "user node")
}

// ListPendingItems is the moderation queue, oldest first.
func (s *PostgresStore) ListPendingItems(ctx context.Context, page Page) ([]story.Item, error) {
	page = page.normalized()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`, `+authorColumns+`
		FROM nodes n
		JOIN users u ON u.id = n.author_id
		WHERE n.status = 'pending'
		ORDER BY n.created_at, n.id
		OFFSET $1 LIMIT $2
	`, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list pending nodes: %w", err)
	}
	return collectItems(rows, "pending node")
}

// AuditNode locks the node, lets decide pick the transition and applies it.
// When the status changes and notice returns a notification, it is written
// in the same transaction as the status.
func (s *PostgresStore) AuditNode(
	ctx context.Context,
	nodeID int64,
	decide func(story.Node) (story.Transition, error),
	notice func(story.Node, story.Transition) *notify.Notification,
) (story.Item, story.Transition, error) {
	var (
		item story.Item
		tr   story.Transition
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		node, err := getNode(ctx, tx, nodeID, "UPDATE")
		if err != nil {
			return err
		}
		tr, err = decide(node)
		if err != nil {
			return err
		}
		if tr.Changed() {
			tr.Apply(&node, now())
			if _, err := tx.ExecContext(ctx, `
				UPDATE nodes SET status=$2, updated_at=$3, published_at=$4 WHERE id=$1
			`, node.ID, string(node.Status), node.UpdatedAt, node.PublishedAt); err != nil {
				return fmt.Errorf("update node status: %w", err)
			}
			if n := notice(node, tr); n != nil {
				if _, err := notify.Emit(ctx, txSink{tx}, *n); err != nil {
					return err
				}
			}
		}
		item, err = getItem(ctx, tx, nodeID)
		return err
	})
	return item, tr, err
}

// EditNode locks the node and writes back the text fields apply changed.
func (s *PostgresStore) EditNode(ctx context.Context, nodeID int64, apply func(*story.Node) error) (story.Item, error) {
	var item story.Item
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		node, err := getNode(ctx, tx, nodeID, "UPDATE")
		if err != nil {
			return err
		}
		if err := apply(&node); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE nodes SET title=$2, content=$3, summary=$4, branch_name=$5, updated_at=$6 WHERE id=$1
		`, node.ID, node.Title, node.Content, node.Summary, node.BranchName, node.UpdatedAt); err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		item, err = getItem(ctx, tx, nodeID)
		return err
	})
	return item, err
}

// DeleteNode removes a node after check approves it. check learns whether
// the node has children; the restricting parent key rejects the delete if a
// child appears anyway.
func (s *PostgresStore) DeleteNode(ctx context.Context, nodeID int64, check func(node story.Node, hasChildren bool) error) (story.Node, error) {
	var deleted story.Node
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		node, err := getNode(ctx, tx, nodeID, "UPDATE")
		if err != nil {
			return err
		}
		var hasChildren bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE parent_id=$1)`, nodeID).Scan(&hasChildren); err != nil {
			return fmt.Errorf("check node children: %w", err)
		}
		if err := check(node, hasChildren); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id=$1`, nodeID); err != nil {
			if isForeignKeyViolation(err) {
				return story.ErrHasChildren
			}
			return fmt.Errorf("delete node: %w", err)
		}
		deleted = node
		return nil
	})
	return deleted, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
