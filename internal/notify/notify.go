// Package notify records social side effects: someone branched off, liked,
// commented on, or moderated another user's node.
package notify

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	TypeBranched  Type = "branched"
	TypeLiked     Type = "liked"
	TypeCommented Type = "commented"
	TypeApproved  Type = "approved"
	TypeRejected  Type = "rejected"
)

var (
	ErrMissingTarget   = errors.New("notification needs a node or comment target")
	ErrMissingReceiver = errors.New("notification needs a receiver")
)

type Notification struct {
	ID         int64     `json:"id"`
	SenderID   *int64    `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Type       Type      `json:"type"`
	NodeID     *int64    `json:"nodeId"`
	CommentID  *int64    `json:"commentId"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks the record can be stored.
func (n Notification) Validate() error {
	if n.ReceiverID == 0 {
		return ErrMissingReceiver
	}
	if n.NodeID == nil && n.CommentID == nil {
		return ErrMissingTarget
	}
	return nil
}

// SelfDirected reports whether the sender would notify themselves.
func (n Notification) SelfDirected() bool {
	return n.SenderID != nil && *n.SenderID == n.ReceiverID
}

// Sink appends notification records. It never commits on its own; the
// caller owns the surrounding transaction.
type Sink interface {
	InsertNotification(ctx context.Context, n Notification) (Notification, error)
}

// Emit appends n to sink. Self-directed notifications are skipped and
// reported as not recorded.
func Emit(ctx context.Context, sink Sink, n Notification) (bool, error) {
	if n.SelfDirected() {
		return false, nil
	}
	if err := n.Validate(); err != nil {
		return false, err
	}
	if _, err := sink.InsertNotification(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// About builds a notification for a node event.
func About(typ Type, sender int64, receiver int64, nodeID int64) Notification {
	return Notification{
		SenderID:   &sender,
		ReceiverID: receiver,
		Type:       typ,
		NodeID:     &nodeID,
	}
}

// Publisher delivers notifications outside the caller's transaction.
// Publish never fails the caller; delivery problems are logged.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}
