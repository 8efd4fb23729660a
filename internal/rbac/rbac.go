// Package rbac holds the role checks for project membership and for the
// admin surfaces.
package rbac

type Role string
type Action string

// Project-scoped roles. Owner is implicit for the project creator and is
// never stored in the collaborators table.
const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

const (
	ActionView   Action = "view"
	ActionChat   Action = "chat"
	ActionEdit   Action = "edit"
	ActionManage Action = "manage"
)

// Account-level roles gate the dashboards, not individual projects.
const (
	AccountUser  = "user"
	AccountAdmin = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleEditor:
		return action == ActionView || action == ActionChat || action == ActionEdit
	case RoleViewer:
		return action == ActionView
	default:
		return false
	}
}

func IsAdmin(accountRole string) bool {
	return accountRole == AccountAdmin
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}
