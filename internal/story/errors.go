package story

import "errors"

var (
	ErrRootRequiresAdmin  = errors.New("only administrators can start a new story tree")
	ErrBookNotFound       = errors.New("book not found")
	ErrBookClosed         = errors.New("book is closed to new contributions")
	ErrParentNotFound     = errors.New("parent node not found")
	ErrParentBookMismatch = errors.New("parent node belongs to another book")
	ErrBranchLocked       = errors.New("branch is locked")
	ErrParentNotPublished = errors.New("parent node is not published")
	ErrNodeNotFound       = errors.New("node not found")
	ErrForbidden          = errors.New("forbidden")
	ErrHasChildren        = errors.New("node has children")
	ErrInvalidStatus      = errors.New("invalid node status")
	ErrAccountRestricted  = errors.New("account is inactive, unverified or banned")
	// ErrPathCycle means parent links loop or run deeper than the walk allows.
	ErrPathCycle = errors.New("ancestry path is malformed")
)
