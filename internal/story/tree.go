package story

import "time"

// TreeNode is the lightweight view of a node used in book trees. It never
// carries the body text.
type TreeNode struct {
	ID         int64       `json:"id"`
	ParentID   *int64      `json:"parentId"`
	Title      string      `json:"title"`
	Summary    string      `json:"summary,omitempty"`
	BranchName string      `json:"branchName,omitempty"`
	Status     Status      `json:"status"`
	Depth      int         `json:"depth"`
	LikesCount int         `json:"likesCount"`
	Author     Author      `json:"author"`
	CreatedAt  time.Time   `json:"createdAt"`
	Children   []*TreeNode `json:"children"`
}

// Assemble builds the forest for one book from an already filtered, flat
// node list. Roots and children keep the input order, which the store
// fixes to ascending id. A node whose parent is missing from items is
// dropped along with its subtree.
func Assemble(items []Item) []*TreeNode {
	byID := make(map[int64]*TreeNode, len(items))
	for _, item := range items {
		byID[item.ID] = &TreeNode{
			ID:         item.ID,
			ParentID:   item.ParentID,
			Title:      item.Title,
			Summary:    item.Summary,
			BranchName: item.BranchName,
			Status:     item.Status,
			Depth:      item.Depth,
			LikesCount: item.LikesCount,
			Author:     item.Author,
			CreatedAt:  item.CreatedAt,
			Children:   []*TreeNode{},
		}
	}

	roots := []*TreeNode{}
	for _, item := range items {
		tn := byID[item.ID]
		if item.ParentID == nil {
			roots = append(roots, tn)
			continue
		}
		if parent, ok := byID[*item.ParentID]; ok {
			parent.Children = append(parent.Children, tn)
		}
	}
	return roots
}

// FilterVisible keeps the items v may read, preserving order.
func FilterVisible(v Viewer, items []Item) []Item {
	scope := VisibilityScope(v)
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if scope.Allows(item.Status, item.AuthorID) {
			out = append(out, item)
		}
	}
	return out
}

// Count returns the number of nodes reachable from roots.
func Count(roots []*TreeNode) int {
	n := 0
	stack := append([]*TreeNode(nil), roots...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, top.Children...)
	}
	return n
}
