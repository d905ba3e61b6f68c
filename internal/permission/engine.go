package permission

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// TxStore is implemented by stores that can rebind themselves to a running
// transaction, so the identity store can run the creation and deletion
// hooks in the same atomic unit as the user row write.
type TxStore interface {
	Store
	WithTx(tx *gorm.DB) Store
}

// Engine is the single source of truth for "may principal P perform action
// A on resource R". It combines model-wide grants, object-level grants and
// group inheritance, and owns the default grants issued when a user
// resource is created.
type Engine struct {
	store          Store
	anonymousEmail string
	logger         *slog.Logger
}

func NewEngine(store Store, anonymousEmail string, logger *slog.Logger) *Engine {
	return &Engine{
		store:          store,
		anonymousEmail: anonymousEmail,
		logger:         logger,
	}
}

// inTx returns an engine bound to tx when the underlying store supports it.
func (e *Engine) inTx(tx *gorm.DB) *Engine {
	if tx == nil {
		return e
	}
	if ts, ok := e.store.(TxStore); ok {
		return &Engine{store: ts.WithTx(tx), anonymousEmail: e.anonymousEmail, logger: e.logger}
	}
	return e
}

// Grant records that principal holds kind, optionally scoped to target.
// Granting an existing triple is a no-op.
func (e *Engine) Grant(ctx context.Context, kind Kind, principal GrantPrincipal, target string) error {
	return e.store.Insert(ctx, Grant{Kind: kind, Principal: principal, Target: target})
}

// Revoke removes a grant. Revoking a grant that does not exist is a no-op.
func (e *Engine) Revoke(ctx context.Context, kind Kind, principal GrantPrincipal, target string) error {
	return e.store.Remove(ctx, Grant{Kind: kind, Principal: principal, Target: target})
}

// Check reports whether p may perform kind on target ("" for the resource
// type as a whole). Superusers always pass. The two scopes stay separate:
// holding a model-wide grant says nothing about any specific object, which
// is why the creation hook issues per-object grants for the admins group
// instead of leaning on its model-wide set. Check never fails: a store
// error or missing data reads as "no".
func (e *Engine) Check(ctx context.Context, p Principal, kind Kind, target string) bool {
	if p == nil {
		return false
	}
	if p.Superuser() {
		return true
	}

	key := p.PrincipalKey()
	if key == "" {
		return false
	}

	principals := []GrantPrincipal{UserPrincipal(key)}
	for _, name := range p.GroupNames() {
		principals = append(principals, GroupPrincipal(name))
	}

	ok, err := e.store.HasAny(ctx, principals, kind, target)
	if err != nil {
		e.logger.Error("grant lookup failed, denying",
			"principal", key,
			"kind", kind,
			"target", target,
			"error", err)
		return false
	}
	return ok
}

// ListGrantsFor returns the kinds principal holds on target.
func (e *Engine) ListGrantsFor(ctx context.Context, principal GrantPrincipal, target string) ([]Kind, error) {
	return e.store.Kinds(ctx, principal, target)
}

// GroupNamesFor resolves the groups a user belongs to, for principal
// construction at authentication time.
func (e *Engine) GroupNamesFor(ctx context.Context, userUUID string) ([]string, error) {
	return e.store.GroupNamesFor(ctx, userUUID)
}

// SyncStaffMembership keeps admins membership in line with the staff flag
// when it is toggled after creation.
func (e *Engine) SyncStaffMembership(ctx context.Context, userUUID string, isStaff bool) error {
	if isStaff {
		return e.store.AddToGroup(ctx, AdminsGroup, userUUID)
	}
	return e.store.RemoveFromGroup(ctx, AdminsGroup, userUUID)
}

// UserCreated is the creation hook. It runs inside the identity store's
// transaction and issues the default grants for a new user resource:
//
//   - the user gets model-wide change/delete/view, and object-level
//     change/delete/view on themselves;
//   - the admins group gets object-level add/change/delete/view on the new
//     resource, and, on first encounter, model-wide add/change/delete/view;
//   - staff users are added to the admins group.
//
// The reserved anonymous account gets nothing.
func (e *Engine) UserCreated(ctx context.Context, tx *gorm.DB, userUUID, email string, isStaff bool) error {
	if email == e.anonymousEmail {
		return nil
	}

	eng := e.inTx(tx)
	self := UserPrincipal(userUUID)

	for _, kind := range []Kind{KindChange, KindDelete, KindView} {
		if err := eng.store.Insert(ctx, Grant{Kind: kind, Principal: self}); err != nil {
			return fmt.Errorf("grant model-wide %s: %w", kind, err)
		}
		if err := eng.store.Insert(ctx, Grant{Kind: kind, Principal: self, Target: userUUID}); err != nil {
			return fmt.Errorf("grant object %s: %w", kind, err)
		}
	}

	admins := GroupPrincipal(AdminsGroup)
	for _, kind := range AllKinds {
		if err := eng.store.Insert(ctx, Grant{Kind: kind, Principal: admins, Target: userUUID}); err != nil {
			return fmt.Errorf("grant admins object %s: %w", kind, err)
		}
	}

	// Model-wide admins grants are ensured lazily, on the first user the
	// group ever sees. The query races into insert-if-absent, so concurrent
	// first creations cannot skip or duplicate the set.
	held, err := eng.store.Kinds(ctx, admins, "")
	if err != nil {
		return fmt.Errorf("list admins grants: %w", err)
	}
	if !containsKind(held, KindAdd) {
		for _, kind := range AllKinds {
			if err := eng.store.Insert(ctx, Grant{Kind: kind, Principal: admins}); err != nil {
				return fmt.Errorf("grant admins model-wide %s: %w", kind, err)
			}
		}
	}

	if isStaff {
		if err := eng.store.AddToGroup(ctx, AdminsGroup, userUUID); err != nil {
			return fmt.Errorf("add staff user to admins: %w", err)
		}
	}

	e.logger.Debug("issued default grants for new user", "user_uuid", userUUID, "is_staff", isStaff)
	return nil
}

// UserDeleted is the deletion hook. It runs inside the identity store's
// transaction, before the row is removed, and purges every grant targeting
// the resource regardless of which principal holds it. Grants where the
// deleted user is the principal are left behind; an orphaned principal is
// simply never matched again.
func (e *Engine) UserDeleted(ctx context.Context, tx *gorm.DB, userUUID string) error {
	eng := e.inTx(tx)
	if err := eng.store.PurgeTarget(ctx, userUUID); err != nil {
		return fmt.Errorf("purge grants for %s: %w", userUUID, err)
	}
	return nil
}

func containsKind(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
