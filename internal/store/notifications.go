package store

import (
	"context"
	"database/sql"
	"fmt"

	"storyforest/api/internal/notify"
	"storyforest/api/internal/story"
)

// txSink appends notifications inside a caller-owned transaction.
type txSink struct {
	tx *sql.Tx
}

func (t txSink) InsertNotification(ctx context.Context, n notify.Notification) (notify.Notification, error) {
	return insertNotification(ctx, t.tx, n)
}

// InsertNotification writes n in its own statement. It backs the
// background dispatcher and relay.
func (s *PostgresStore) InsertNotification(ctx context.Context, n notify.Notification) (notify.Notification, error) {
	return insertNotification(ctx, s.db, n)
}

const notificationColumns = `id, sender_id, receiver_id, type, node_id, comment_id, is_read, created_at`

func scanNotification(row scanner) (notify.Notification, error) {
	var (
		n                         notify.Notification
		sender, nodeID, commentID sql.NullInt64
	)
	if err := row.Scan(&n.ID, &sender, &n.ReceiverID, &n.Type, &nodeID, &commentID, &n.IsRead, &n.CreatedAt); err != nil {
		return notify.Notification{}, err
	}
	n.SenderID = nullableID(sender)
	n.NodeID = nullableID(nodeID)
	n.CommentID = nullableID(commentID)
	return n, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func insertNotification(ctx context.Context, q queryer, n notify.Notification) (notify.Notification, error) {
	stored, err := scanNotification(q.QueryRowContext(ctx, `
		INSERT INTO notifications (sender_id, receiver_id, type, node_id, comment_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		n.SenderID, n.ReceiverID, string(n.Type), n.NodeID, n.CommentID))
	if err != nil {
		return notify.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return stored, nil
}

// ListNotifications returns a receiver's notifications newest first, each
// with its sender's public profile.
func (s *PostgresStore) ListNotifications(ctx context.Context, receiverID int64, unreadOnly bool, page Page) ([]NotificationItem, error) {
	page = page.normalized()
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.sender_id, n.receiver_id, n.type, n.node_id, n.comment_id, n.is_read, n.created_at,
			u.id, u.username, u.avatar
		FROM notifications n
		LEFT JOIN users u ON u.id = n.sender_id
		WHERE n.receiver_id=$1 AND (NOT $2 OR n.is_read = FALSE)
		ORDER BY n.created_at DESC, n.id DESC
		OFFSET $3 LIMIT $4
	`, receiverID, unreadOnly, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]NotificationItem, 0)
	for rows.Next() {
		var (
			item                      NotificationItem
			sender, nodeID, commentID sql.NullInt64
			senderUserID              sql.NullInt64
			senderName, senderAvatar  sql.NullString
		)
		err := rows.Scan(&item.ID, &sender, &item.ReceiverID, &item.Type, &nodeID, &commentID, &item.IsRead, &item.CreatedAt,
			&senderUserID, &senderName, &senderAvatar)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		item.SenderID = nullableID(sender)
		item.NodeID = nullableID(nodeID)
		item.CommentID = nullableID(commentID)
		if senderUserID.Valid {
			item.Sender = &story.Author{ID: senderUserID.Int64, Username: senderName.String, Avatar: senderAvatar.String}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UnreadCount(ctx context.Context, receiverID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE receiver_id=$1 AND is_read = FALSE`, receiverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAllRead flags every unread notification of receiverID as read and
// returns how many changed. Repeating it changes nothing.
func (s *PostgresStore) MarkAllRead(ctx context.Context, receiverID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE receiver_id=$1 AND is_read = FALSE`, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return changed, nil
}
