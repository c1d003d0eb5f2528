package story

import "time"

type Book struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Node struct {
	ID          int64      `json:"id"`
	BookID      int64      `json:"bookId"`
	ParentID    *int64     `json:"parentId"`
	AuthorID    int64      `json:"authorId"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	BranchName  string     `json:"branchName,omitempty"`
	Status      Status     `json:"status"`
	Depth       int        `json:"depth"`
	LikesCount  int        `json:"likesCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// IsRoot reports whether the node starts a tree.
func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Item is a node together with the author who wrote it.
type Item struct {
	Node
	Author Author `json:"author"`
}

// Draft is the caller-supplied part of a new node.
type Draft struct {
	BookID     int64
	ParentID   *int64
	Title      string
	Content    string
	Summary    string
	BranchName string
}
