package gate

import "context"

// Policy defines authorization rules for a resource type.
// U is the user/subject type (e.g., uint for userID, *User for a full struct).
type Policy[U any] interface {
	// Can returns true if user is authorized to perform action on resource.
	// For list/create, resource may be nil (context-only check).
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// RoleResolver maps a subject to its role name (e.g., "admin", "manager").
type RoleResolver[U any] func(ctx context.Context, user U) (string, error)

// RolePolicy authorizes actions based on a role-to-actions table.
// Unknown roles are denied everything.
type RolePolicy[U any] struct {
	Resolve RoleResolver[U]
	Allowed map[string][]Action
}

func (p *RolePolicy[U]) Can(ctx context.Context, user U, action Action, _ any) bool {
	if p.Resolve == nil {
		return false
	}
	role, err := p.Resolve(ctx, user)
	if err != nil {
		return false
	}
	for _, a := range p.Allowed[role] {
		if a == action {
			return true
		}
	}
	return false
}
