package rbac

type Role string
type Action string

const (
	RoleBanned Role = "banned"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionBranch  Action = "branch"
	ActionLike    Action = "like"
	ActionComment Action = "comment"

	// ActionCreateRoot opens a new story tree in a book.
	ActionCreateRoot      Action = "create_root"
	// ActionBranchAnyStatus allows branching off pending, locked or rejected nodes.
	ActionBranchAnyStatus Action = "branch_any_status"
	// ActionWriteClosedBook allows contributions while a book is inactive.
	ActionWriteClosedBook Action = "write_closed_book"
	ActionModerate        Action = "moderate"
	ActionManageBooks     Action = "manage_books"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleWriter:
		return action == ActionRead || action == ActionBranch || action == ActionLike || action == ActionComment
	case RoleBanned:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleBanned, RoleWriter, RoleAdmin:
		return Role(role)
	default:
		return RoleBanned
	}
}
