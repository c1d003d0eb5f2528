package story

import "storyforest/api/internal/rbac"

// Viewer is whoever is reading the forest.
type Viewer struct {
	UserID int64
	Role   rbac.Role
	Authed bool
}

// Guest is an unauthenticated viewer.
func Guest() Viewer {
	return Viewer{}
}

// Member is an authenticated, non-admin viewer.
func Member(userID int64) Viewer {
	return Viewer{UserID: userID, Role: rbac.RoleWriter, Authed: true}
}

// Administrator is an authenticated admin viewer.
func Administrator(userID int64) Viewer {
	return Viewer{UserID: userID, Role: rbac.RoleAdmin, Authed: true}
}

// ViewerFor turns an account into a viewer. Accounts that are inactive or
// unverified read as guests. Banned accounts keep their own drafts visible.
func ViewerFor(userID int64, role string, active, verified bool) Viewer {
	if !active || !verified {
		return Guest()
	}
	return Viewer{UserID: userID, Role: rbac.Normalize(role), Authed: true}
}

func (v Viewer) IsAdmin() bool {
	return v.Authed && v.Role == rbac.RoleAdmin
}

// Scope is the visibility rule for a viewer in a form both Go code and SQL
// builders can consume. A node is visible when All is set, its status is in
// Statuses, or OwnerID is set and matches its author.
type Scope struct {
	All      bool
	Statuses []Status
	OwnerID  *int64
}

// VisibilityScope returns the scope a viewer reads under.
func VisibilityScope(v Viewer) Scope {
	if v.IsAdmin() {
		return Scope{All: true}
	}
	scope := Scope{Statuses: PublicStatuses()}
	if v.Authed {
		owner := v.UserID
		scope.OwnerID = &owner
	}
	return scope
}

// Allows reports whether a node with the given status and author is in scope.
func (s Scope) Allows(status Status, authorID int64) bool {
	if s.All {
		return true
	}
	for _, allowed := range s.Statuses {
		if allowed == status {
			return true
		}
	}
	return s.OwnerID != nil && *s.OwnerID == authorID
}

// StatusStrings is Statuses as plain strings, for query parameters.
func (s Scope) StatusStrings() []string {
	out := make([]string, 0, len(s.Statuses))
	for _, status := range s.Statuses {
		out = append(out, string(status))
	}
	return out
}

// Visible reports whether v may read n.
func Visible(v Viewer, n Node) bool {
	return VisibilityScope(v).Allows(n.Status, n.AuthorID)
}

// Actor is an account attempting a mutation.
type Actor struct {
	UserID   int64
	Role     rbac.Role
	Active   bool
	Verified bool
}

func (a Actor) IsAdmin() bool {
	return a.Role == rbac.RoleAdmin
}

// Viewer returns the read-side identity of the actor.
func (a Actor) Viewer() Viewer {
	return ViewerFor(a.UserID, string(a.Role), a.Active, a.Verified)
}

// CheckAccount rejects accounts that may not mutate anything.
func (a Actor) CheckAccount(action rbac.Action) error {
	if !a.Active || !a.Verified || a.Role == rbac.RoleBanned {
		return ErrAccountRestricted
	}
	if !rbac.Can(a.Role, action) {
		return ErrForbidden
	}
	return nil
}
