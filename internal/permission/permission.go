package permission

import "context"

// Kind is a permission on the user resource type. The set mirrors the four
// CRUD actions the resource API exposes.
type Kind string

const (
	KindAdd    Kind = "add_user"
	KindChange Kind = "change_user"
	KindDelete Kind = "delete_user"
	KindView   Kind = "view_user"
)

// AllKinds in a stable order, used by the creation hook and tests.
var AllKinds = []Kind{KindAdd, KindChange, KindDelete, KindView}

// KindForMethod maps an HTTP method to the permission kind it requires.
func KindForMethod(method string) (Kind, bool) {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return KindView, true
	case "POST":
		return KindAdd, true
	case "PUT", "PATCH":
		return KindChange, true
	case "DELETE":
		return KindDelete, true
	}
	return "", false
}

type PrincipalType string

const (
	PrincipalUser  PrincipalType = "user"
	PrincipalGroup PrincipalType = "group"
)

// AdminsGroup aggregates staff-equivalent privileges. Membership implies
// inheriting every grant made to the group.
const AdminsGroup = "admins"

// GrantPrincipal identifies the holder of a grant: a user (by uuid) or a
// group (by name).
type GrantPrincipal struct {
	Type PrincipalType
	ID   string
}

func UserPrincipal(userUUID string) GrantPrincipal {
	return GrantPrincipal{Type: PrincipalUser, ID: userUUID}
}

func GroupPrincipal(name string) GrantPrincipal {
	return GrantPrincipal{Type: PrincipalGroup, ID: name}
}

// Grant is the engine's view of one permission grant. Target is the empty
// string for model-wide grants.
type Grant struct {
	Kind      Kind
	Principal GrantPrincipal
	Target    string
}

// Principal is the engine's view of a caller. The anonymous principal
// returns an empty key and therefore never matches a grant.
type Principal interface {
	PrincipalKey() string
	Superuser() bool
	GroupNames() []string
}

// Store persists grants and group membership. Insert must be idempotent:
// inserting an existing (kind, principal, target) triple is a no-op, and
// that guarantee must come from the store's uniqueness constraint so that
// concurrent inserts of the same triple cannot race.
type Store interface {
	Insert(ctx context.Context, g Grant) error
	Remove(ctx context.Context, g Grant) error
	// HasAny reports whether any of the principals holds kind exactly on
	// target ("" for the model-wide scope). The two scopes never fold into
	// each other: a model-wide grant does not answer an object query.
	HasAny(ctx context.Context, principals []GrantPrincipal, kind Kind, target string) (bool, error)
	// Kinds lists the kinds principal holds exactly on target ("" for the
	// model-wide scope).
	Kinds(ctx context.Context, principal GrantPrincipal, target string) ([]Kind, error)
	// PurgeTarget removes every grant scoped to target, for all principals.
	PurgeTarget(ctx context.Context, target string) error

	GroupNamesFor(ctx context.Context, userUUID string) ([]string, error)
	AddToGroup(ctx context.Context, group, userUUID string) error
	RemoveFromGroup(ctx context.Context, group, userUUID string) error
	EnsureGroup(ctx context.Context, name string) error
}
