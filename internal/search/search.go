// Package search keeps a Meilisearch index of publicly readable nodes.
package search

import (
	"strconv"

	"storyforest/api/internal/story"
)

// NodeRecord is what gets indexed for a node. Body text is left out.
type NodeRecord struct {
	ID         string `json:"id"`
	BookID     int64  `json:"bookId"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	BranchName string `json:"branchName"`
	Author     string `json:"author"`
	Status     string `json:"status"`
	Depth      int    `json:"depth"`
}

// RecordFor builds the index record for item.
func RecordFor(item story.Item) NodeRecord {
	return NodeRecord{
		ID:         strconv.FormatInt(item.ID, 10),
		BookID:     item.BookID,
		Title:      item.Title,
		Summary:    item.Summary,
		BranchName: item.BranchName,
		Author:     item.Author.Username,
		Status:     string(item.Status),
		Depth:      item.Depth,
	}
}

// Indexer pushes node records into a search backend.
type Indexer interface {
	UpsertNodes(records []NodeRecord) error
	DeleteNode(id string) error
	Healthy() bool
}
