package store

import (
	"errors"
	"time"

	"storyforest/api/internal/notify"
	"storyforest/api/internal/story"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrBookNotEmpty = errors.New("book still has nodes")
)

type User struct {
	ID         int64
	Username   string
	Email      string
	Avatar     string
	Role       string
	IsActive   bool
	IsVerified bool
	CreatedAt  time.Time
}

// Author is the public part of the user.
func (u User) Author() story.Author {
	return story.Author{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

type Comment struct {
	ID        int64        `json:"id"`
	NodeID    int64        `json:"nodeId"`
	Author    story.Author `json:"author"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NotificationItem is a listed notification with its sender's public
// profile. Sender is nil for system notices.
type NotificationItem struct {
	notify.Notification
	Sender *story.Author `json:"sender"`
}

// UserStats summarizes the nodes of one author a viewer may see.
type UserStats struct {
	NodesCount int
	TotalLikes int
}

type LikeAction string

const (
	Liked   LikeAction = "liked"
	Unliked LikeAction = "unliked"
)

type LikeResult struct {
	Action     LikeAction `json:"action"`
	LikesCount int        `json:"likesCount"`
}

// Page bounds list queries.
type Page struct {
	Skip  int
	Limit int
}

func (p Page) normalized() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	return p
}
