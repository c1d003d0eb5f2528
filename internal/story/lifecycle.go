package story

import (
	"time"

	"storyforest/api/internal/rbac"
)

// PlanNode decides whether actor may add draft to the forest and, if so,
// returns the node to insert. book and parent are what the store read inside
// the insert transaction; nil means the row does not exist.
func PlanNode(actor Actor, draft Draft, book *Book, parent *Node, now time.Time) (Node, error) {
	if err := actor.CheckAccount(rbac.ActionBranch); err != nil {
		return Node{}, err
	}
	if draft.ParentID == nil && !rbac.Can(actor.Role, rbac.ActionCreateRoot) {
		return Node{}, ErrRootRequiresAdmin
	}
	if book == nil || book.ID != draft.BookID {
		return Node{}, ErrBookNotFound
	}
	if !book.Active && !rbac.Can(actor.Role, rbac.ActionWriteClosedBook) {
		return Node{}, ErrBookClosed
	}

	depth := 1
	if draft.ParentID != nil {
		if parent == nil || parent.ID != *draft.ParentID {
			return Node{}, ErrParentNotFound
		}
		if parent.BookID != draft.BookID {
			return Node{}, ErrParentBookMismatch
		}
		if !rbac.Can(actor.Role, rbac.ActionBranchAnyStatus) {
			switch parent.Status {
			case StatusPublished:
			case StatusLocked:
				return Node{}, ErrBranchLocked
			default:
				return Node{}, ErrParentNotPublished
			}
		}
		depth = parent.Depth + 1
	}

	node := Node{
		BookID:     draft.BookID,
		ParentID:   draft.ParentID,
		AuthorID:   actor.UserID,
		Title:      draft.Title,
		Content:    draft.Content,
		Summary:    draft.Summary,
		BranchName: draft.BranchName,
		Status:     StatusPending,
		Depth:      depth,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if actor.IsAdmin() {
		node.Status = StatusPublished
		node.PublishedAt = &now
	}
	return node, nil
}

// Transition is the outcome of an audit.
type Transition struct {
	From Status
	To   Status
	// Override marks an admin move outside the regular workflow.
	Override bool
}

func (t Transition) Changed() bool {
	return t.From != t.To
}

// Approved reports whether the audit moved the node into published.
func (t Transition) Approved() bool {
	return t.Changed() && t.To == StatusPublished
}

// Rejected reports whether the audit moved the node into rejected.
func (t Transition) Rejected() bool {
	return t.Changed() && t.To == StatusRejected
}

// PlanAudit validates a moderation decision on node.
func PlanAudit(actor Actor, node Node, to Status) (Transition, error) {
	if err := actor.CheckAccount(rbac.ActionModerate); err != nil {
		return Transition{}, err
	}
	if !to.Valid() {
		return Transition{}, ErrInvalidStatus
	}
	t := Transition{From: node.Status, To: to}
	t.Override = t.Changed() && !InWorkflow(t.From, t.To)
	return t, nil
}

// Apply writes the transition onto node.
func (t Transition) Apply(node *Node, now time.Time) {
	if !t.Changed() {
		return
	}
	node.Status = t.To
	node.UpdatedAt = now
	if t.To == StatusPublished && node.PublishedAt == nil {
		node.PublishedAt = &now
	}
}

// Patch holds optional edits to a node. Status and depth are not editable.
type Patch struct {
	Title      *string
	Content    *string
	Summary    *string
	BranchName *string
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Summary == nil && p.BranchName == nil
}

// Apply writes the non-nil fields onto node.
func (p Patch) Apply(node *Node, now time.Time) {
	if p.Title != nil {
		node.Title = *p.Title
	}
	if p.Content != nil {
		node.Content = *p.Content
	}
	if p.Summary != nil {
		node.Summary = *p.Summary
	}
	if p.BranchName != nil {
		node.BranchName = *p.BranchName
	}
	node.UpdatedAt = now
}

// CheckEdit allows the author or an administrator to edit node.
func CheckEdit(actor Actor, node Node) error {
	return checkOwner(actor, node)
}

// CheckDelete allows the author or an administrator to delete a leaf node.
func CheckDelete(actor Actor, node Node, hasChildren bool) error {
	if err := checkOwner(actor, node); err != nil {
		return err
	}
	if hasChildren {
		return ErrHasChildren
	}
	return nil
}

// CheckEngage gates likes and comments: the actor must be allowed to act and
// must be able to see the node.
func CheckEngage(actor Actor, node Node, action rbac.Action) error {
	if err := actor.CheckAccount(action); err != nil {
		return err
	}
	if !Visible(actor.Viewer(), node) {
		return ErrNodeNotFound
	}
	return nil
}

func checkOwner(actor Actor, node Node) error {
	if err := actor.CheckAccount(rbac.ActionBranch); err != nil {
		return err
	}
	if !Visible(actor.Viewer(), node) {
		return ErrNodeNotFound
	}
	if actor.IsAdmin() || node.AuthorID == actor.UserID {
		return nil
	}
	return ErrForbidden
}
