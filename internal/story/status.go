package story

import (
	"fmt"
	"strings"
)

// Status is the moderation state of a node.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusLocked    Status = "locked"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPublished, StatusLocked, StatusRejected:
		return true
	default:
		return false
	}
}

// Public reports whether nodes in this status are readable by everyone.
func (s Status) Public() bool {
	return s == StatusPublished || s == StatusLocked
}

// ParseStatus accepts a status name in any case.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return status, nil
}

// PublicStatuses lists the statuses every viewer may read.
func PublicStatuses() []Status {
	return []Status{StatusPublished, StatusLocked}
}

// workflow holds the moderation edges nodes normally move along. Locked
// nodes can be re-audited back to published.
var workflow = map[Status][]Status{
	StatusPending:   {StatusPublished, StatusRejected},
	StatusPublished: {StatusLocked},
	StatusLocked:    {StatusPublished},
}

// InWorkflow reports whether from -> to is a regular moderation step.
func InWorkflow(from, to Status) bool {
	for _, next := range workflow[from] {
		if next == to {
			return true
		}
	}
	return false
}
