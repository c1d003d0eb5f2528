package story

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxPathDepth bounds ancestry walks when no limit is configured.
const DefaultMaxPathDepth = 1024

// PathSource is the storage the ancestry resolver walks.
type PathSource interface {
	// NodeByID returns ErrNodeNotFound when the node does not exist.
	NodeByID(ctx context.Context, id int64) (Node, error)
	// AuthorsByID returns the known authors among ids.
	AuthorsByID(ctx context.Context, ids []int64) (map[int64]Author, error)
}

// ResolvePath returns the chain root..anchor for viewer, ordered by depth.
// Every hop is checked with the same visibility rule; one hidden or missing
// node fails the whole lookup with ErrNodeNotFound.
func ResolvePath(ctx context.Context, src PathSource, anchorID int64, viewer Viewer, maxDepth int) ([]Item, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPathDepth
	}
	scope := VisibilityScope(viewer)

	var chain []Node
	seen := make(map[int64]struct{})
	next := &anchorID
	for next != nil {
		if len(chain) >= maxDepth {
			return nil, fmt.Errorf("%w: deeper than %d", ErrPathCycle, maxDepth)
		}
		if _, ok := seen[*next]; ok {
			return nil, fmt.Errorf("%w: node %d repeats", ErrPathCycle, *next)
		}
		seen[*next] = struct{}{}

		node, err := src.NodeByID(ctx, *next)
		if errors.Is(err, ErrNodeNotFound) {
			return nil, ErrNodeNotFound
		}
		if err != nil {
			return nil, err
		}
		if !scope.Allows(node.Status, node.AuthorID) {
			return nil, ErrNodeNotFound
		}
		chain = append(chain, node)
		next = node.ParentID
	}

	ids := make([]int64, 0, len(chain))
	for _, node := range chain {
		ids = append(ids, node.AuthorID)
	}
	authors, err := src.AuthorsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	path := make([]Item, len(chain))
	for i, node := range chain {
		author, ok := authors[node.AuthorID]
		if !ok {
			author = Author{ID: node.AuthorID}
		}
		path[len(chain)-1-i] = Item{Node: node, Author: author}
	}
	return path, nil
}
