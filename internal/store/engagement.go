package store

import (
	"context"
	"database/sql"
	"fmt"

	"storyforest/api/internal/notify"
	"storyforest/api/internal/story"
)

// ToggleLike flips the (user, node) like relation. The node row is locked
// for the whole toggle and likes_count is recomputed from the relation, so
// concurrent toggles serialize and the counter always equals the live
// count. The liked branch writes notice's notification in the same
// transaction; unliking never notifies.
func (s *PostgresStore) ToggleLike(
	ctx context.Context,
	userID, nodeID int64,
	check func(story.Node) error,
	notice func(story.Node) *notify.Notification,
) (LikeResult, error) {
	var result LikeResult
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		node, err := getNode(ctx, tx, nodeID, "UPDATE")
		if err != nil {
			return err
		}
		if err := check(node); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM node_likes WHERE user_id=$1 AND node_id=$2`, userID, nodeID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		result.Action = Unliked
		if removed == 0 {
			if _, err := tx.ExecContext(ctx, `INSERT INTO node_likes (user_id, node_id) VALUES ($1, $2)`, userID, nodeID); err != nil {
				return fmt.Errorf("insert like: %w", err)
			}
			result.Action = Liked
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE nodes
			SET likes_count = (SELECT COUNT(*) FROM node_likes WHERE node_id=$1)
			WHERE id=$1
			RETURNING likes_count
		`, nodeID).Scan(&result.LikesCount)
		if err != nil {
			return fmt.Errorf("recount likes: %w", err)
		}

		if result.Action == Liked {
			if n := notice(node); n != nil {
				if _, err := notify.Emit(ctx, txSink{tx}, *n); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return result, err
}

// HasLiked reports whether userID currently likes nodeID.
func (s *PostgresStore) HasLiked(ctx context.Context, userID, nodeID int64) (bool, error) {
	var liked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM node_likes WHERE user_id=$1 AND node_id=$2)`, userID, nodeID).Scan(&liked)
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return liked, nil
}

// CreateComment stores a comment on a node check approves and, when notice
// returns one, the author's notification, in one transaction.
func (s *PostgresStore) CreateComment(
	ctx context.Context,
	userID, nodeID int64,
	content string,
	check func(story.Node) error,
	notice func(story.Node, int64) *notify.Notification,
) (Comment, error) {
	var comment Comment
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		node, err := getNode(ctx, tx, nodeID, "SHARE")
		if err != nil {
			return err
		}
		if err := check(node); err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `
			WITH inserted AS (
				INSERT INTO comments (node_id, user_id, content)
				VALUES ($1, $2, $3)
				RETURNING id, node_id, user_id, content, created_at
			)
			SELECT i.id, i.node_id, i.content, i.created_at, u.id, u.username, u.avatar
			FROM inserted i
			JOIN users u ON u.id = i.user_id
		`, nodeID, userID, content).Scan(&comment.ID, &comment.NodeID, &comment.Content, &comment.CreatedAt,
			&comment.Author.ID, &comment.Author.Username, &comment.Author.Avatar)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		if n := notice(node, comment.ID); n != nil {
			if _, err := notify.Emit(ctx, txSink{tx}, *n); err != nil {
				return err
			}
		}
		return nil
	})
	return comment, err
}

// ListComments returns a node's comments oldest first.
func (s *PostgresStore) ListComments(ctx context.Context, nodeID int64, page Page) ([]Comment, error) {
	page = page.normalized()
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.node_id, c.content, c.created_at, u.id, u.username, u.avatar
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.node_id=$1
		ORDER BY c.created_at, c.id
		OFFSET $2 LIMIT $3
	`, nodeID, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.NodeID, &c.Content, &c.CreatedAt, &c.Author.ID, &c.Author.Username, &c.Author.Avatar); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}
