package permission_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/frahmantamala/account-service/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPermissionEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Engine Suite")
}

// MockStore implements permission.Store with set semantics, mirroring the
// uniqueness constraint of the real table.
type MockStore struct {
	grants     map[permission.Grant]bool
	groups     map[string]bool
	members    map[string]map[string]bool // group -> user uuids
	shouldFail bool
	failError  error
}

func NewMockStore() *MockStore {
	return &MockStore{
		grants:  make(map[permission.Grant]bool),
		groups:  make(map[string]bool),
		members: make(map[string]map[string]bool),
	}
}

func (m *MockStore) Insert(_ context.Context, g permission.Grant) error {
	if m.shouldFail {
		return m.failError
	}
	m.grants[g] = true
	return nil
}

func (m *MockStore) Remove(_ context.Context, g permission.Grant) error {
	if m.shouldFail {
		return m.failError
	}
	delete(m.grants, g)
	return nil
}

func (m *MockStore) HasAny(_ context.Context, principals []permission.GrantPrincipal, kind permission.Kind, target string) (bool, error) {
	if m.shouldFail {
		return false, m.failError
	}
	for _, p := range principals {
		if m.grants[permission.Grant{Kind: kind, Principal: p, Target: target}] {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) Kinds(_ context.Context, principal permission.GrantPrincipal, target string) ([]permission.Kind, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var kinds []permission.Kind
	for g := range m.grants {
		if g.Principal == principal && g.Target == target {
			kinds = append(kinds, g.Kind)
		}
	}
	return kinds, nil
}

func (m *MockStore) PurgeTarget(_ context.Context, target string) error {
	if m.shouldFail {
		return m.failError
	}
	for g := range m.grants {
		if g.Target == target {
			delete(m.grants, g)
		}
	}
	return nil
}

func (m *MockStore) GroupNamesFor(_ context.Context, userUUID string) ([]string, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var names []string
	for group, users := range m.members {
		if users[userUUID] {
			names = append(names, group)
		}
	}
	return names, nil
}

func (m *MockStore) AddToGroup(_ context.Context, group, userUUID string) error {
	if m.shouldFail {
		return m.failError
	}
	if m.members[group] == nil {
		m.members[group] = make(map[string]bool)
	}
	m.members[group][userUUID] = true
	return nil
}

func (m *MockStore) RemoveFromGroup(_ context.Context, group, userUUID string) error {
	if m.shouldFail {
		return m.failError
	}
	if m.members[group] != nil {
		delete(m.members[group], userUUID)
	}
	return nil
}

func (m *MockStore) EnsureGroup(_ context.Context, name string) error {
	if m.shouldFail {
		return m.failError
	}
	m.groups[name] = true
	return nil
}

func (m *MockStore) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

func (m *MockStore) GrantCount() int {
	return len(m.grants)
}

// testPrincipal is a minimal permission.Principal for Check tests.
type testPrincipal struct {
	key       string
	superuser bool
	groups    []string
}

func (p testPrincipal) PrincipalKey() string { return p.key }
func (p testPrincipal) Superuser() bool      { return p.superuser }
func (p testPrincipal) GroupNames() []string { return p.groups }

var _ = Describe("Permission Engine", func() {
	var (
		store  *MockStore
		engine *permission.Engine
		ctx    context.Context
	)

	const anonymousEmail = "anonymous@localhost"

	BeforeEach(func() {
		store = NewMockStore()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		engine = permission.NewEngine(store, anonymousEmail, logger)
		ctx = context.Background()
	})

	Describe("UserCreated", func() {
		const newUUID = "11111111-1111-4111-8111-111111111111"

		It("grants the user model-wide and object change/delete/view on themselves", func() {
			err := engine.UserCreated(ctx, nil, newUUID, "alice@example.com", false)
			Expect(err).NotTo(HaveOccurred())

			self := permission.UserPrincipal(newUUID)
			for _, kind := range []permission.Kind{permission.KindChange, permission.KindDelete, permission.KindView} {
				Expect(store.grants[permission.Grant{Kind: kind, Principal: self}]).To(BeTrue())
				Expect(store.grants[permission.Grant{Kind: kind, Principal: self, Target: newUUID}]).To(BeTrue())
			}
		})

		It("does not grant the user add_user anywhere", func() {
			err := engine.UserCreated(ctx, nil, newUUID, "alice@example.com", false)
			Expect(err).NotTo(HaveOccurred())

			self := permission.UserPrincipal(newUUID)
			Expect(store.grants[permission.Grant{Kind: permission.KindAdd, Principal: self}]).To(BeFalse())
			Expect(store.grants[permission.Grant{Kind: permission.KindAdd, Principal: self, Target: newUUID}]).To(BeFalse())
		})

		It("grants the admins group all four kinds on the new resource and model-wide", func() {
			err := engine.UserCreated(ctx, nil, newUUID, "alice@example.com", false)
			Expect(err).NotTo(HaveOccurred())

			admins := permission.GroupPrincipal(permission.AdminsGroup)
			for _, kind := range permission.AllKinds {
				Expect(store.grants[permission.Grant{Kind: kind, Principal: admins, Target: newUUID}]).To(BeTrue())
				Expect(store.grants[permission.Grant{Kind: kind, Principal: admins}]).To(BeTrue())
			}
		})

		It("is idempotent across repeated creations", func() {
			Expect(engine.UserCreated(ctx, nil, newUUID, "alice@example.com", false)).To(Succeed())
			count := store.GrantCount()
			Expect(engine.UserCreated(ctx, nil, newUUID, "alice@example.com", false)).To(Succeed())
			Expect(store.GrantCount()).To(Equal(count))
		})

		It("adds staff users to the admins group", func() {
			err := engine.UserCreated(ctx, nil, newUUID, "staff@example.com", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.members[permission.AdminsGroup][newUUID]).To(BeTrue())
		})

		It("does not add regular users to the admins group", func() {
			err := engine.UserCreated(ctx, nil, newUUID, "alice@example.com", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.members[permission.AdminsGroup][newUUID]).To(BeFalse())
		})

		It("issues nothing for the reserved anonymous account", func() {
			err := engine.UserCreated(ctx, nil, newUUID, anonymousEmail, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.GrantCount()).To(BeZero())
		})
	})

	Describe("UserDeleted", func() {
		const (
			aliceUUID = "11111111-1111-4111-8111-111111111111"
			bobUUID   = "22222222-2222-4222-8222-222222222222"
		)

		It("purges every grant targeting the deleted resource, for all principals", func() {
			Expect(engine.UserCreated(ctx, nil, aliceUUID, "alice@example.com", false)).To(Succeed())
			Expect(engine.UserCreated(ctx, nil, bobUUID, "bob@example.com", false)).To(Succeed())

			Expect(engine.UserDeleted(ctx, nil, aliceUUID)).To(Succeed())

			for g := range store.grants {
				Expect(g.Target).NotTo(Equal(aliceUUID))
			}
		})

		It("keeps grants held by the deleted user on other targets", func() {
			Expect(engine.UserCreated(ctx, nil, aliceUUID, "alice@example.com", false)).To(Succeed())
			self := permission.UserPrincipal(aliceUUID)
			Expect(engine.Grant(ctx, permission.KindView, self, bobUUID)).To(Succeed())

			Expect(engine.UserDeleted(ctx, nil, aliceUUID)).To(Succeed())

			Expect(store.grants[permission.Grant{Kind: permission.KindView, Principal: self, Target: bobUUID}]).To(BeTrue())
			Expect(store.grants[permission.Grant{Kind: permission.KindView, Principal: self}]).To(BeTrue())
		})
	})

	Describe("Check", func() {
		const (
			aliceUUID = "11111111-1111-4111-8111-111111111111"
			bobUUID   = "22222222-2222-4222-8222-222222222222"
		)

		It("denies a nil principal", func() {
			Expect(engine.Check(ctx, nil, permission.KindView, "")).To(BeFalse())
		})

		It("always allows superusers", func() {
			p := testPrincipal{key: aliceUUID, superuser: true}
			Expect(engine.Check(ctx, p, permission.KindDelete, bobUUID)).To(BeTrue())
		})

		It("denies principals with an empty key even when matching grants exist", func() {
			Expect(engine.Grant(ctx, permission.KindView, permission.UserPrincipal(""), "")).To(Succeed())
			p := testPrincipal{key: ""}
			Expect(engine.Check(ctx, p, permission.KindView, "")).To(BeFalse())
		})

		It("matches a direct object-level grant", func() {
			Expect(engine.Grant(ctx, permission.KindChange, permission.UserPrincipal(aliceUUID), bobUUID)).To(Succeed())
			p := testPrincipal{key: aliceUUID}
			Expect(engine.Check(ctx, p, permission.KindChange, bobUUID)).To(BeTrue())
			Expect(engine.Check(ctx, p, permission.KindDelete, bobUUID)).To(BeFalse())
		})

		It("keeps the model-wide and object scopes separate", func() {
			Expect(engine.Grant(ctx, permission.KindView, permission.UserPrincipal(aliceUUID), "")).To(Succeed())
			p := testPrincipal{key: aliceUUID}
			Expect(engine.Check(ctx, p, permission.KindView, "")).To(BeTrue())
			Expect(engine.Check(ctx, p, permission.KindView, bobUUID)).To(BeFalse())
		})

		It("does not let an object-level grant satisfy a model-wide check", func() {
			Expect(engine.Grant(ctx, permission.KindView, permission.UserPrincipal(aliceUUID), bobUUID)).To(Succeed())
			p := testPrincipal{key: aliceUUID}
			Expect(engine.Check(ctx, p, permission.KindView, "")).To(BeFalse())
		})

		It("lets a fresh user act on themselves but not on others", func() {
			Expect(engine.UserCreated(ctx, nil, aliceUUID, "alice@example.com", false)).To(Succeed())
			Expect(engine.UserCreated(ctx, nil, bobUUID, "bob@example.com", false)).To(Succeed())

			alice := testPrincipal{key: aliceUUID}
			for _, kind := range []permission.Kind{permission.KindView, permission.KindChange, permission.KindDelete} {
				Expect(engine.Check(ctx, alice, kind, aliceUUID)).To(BeTrue())
				Expect(engine.Check(ctx, alice, kind, bobUUID)).To(BeFalse())
			}
		})

		It("lets admins members act on every created user through object grants", func() {
			Expect(engine.UserCreated(ctx, nil, aliceUUID, "alice@example.com", false)).To(Succeed())
			Expect(engine.UserCreated(ctx, nil, bobUUID, "staff@example.com", true)).To(Succeed())

			staff := testPrincipal{key: bobUUID, groups: []string{permission.AdminsGroup}}
			Expect(engine.Check(ctx, staff, permission.KindView, aliceUUID)).To(BeTrue())
			Expect(engine.Check(ctx, staff, permission.KindDelete, aliceUUID)).To(BeTrue())
		})

		It("inherits grants through group membership", func() {
			Expect(engine.Grant(ctx, permission.KindDelete, permission.GroupPrincipal(permission.AdminsGroup), bobUUID)).To(Succeed())
			p := testPrincipal{key: aliceUUID, groups: []string{permission.AdminsGroup}}
			Expect(engine.Check(ctx, p, permission.KindDelete, bobUUID)).To(BeTrue())

			outsider := testPrincipal{key: aliceUUID}
			Expect(engine.Check(ctx, outsider, permission.KindDelete, bobUUID)).To(BeFalse())
		})

		It("reads a store failure as denial", func() {
			Expect(engine.Grant(ctx, permission.KindView, permission.UserPrincipal(aliceUUID), "")).To(Succeed())
			store.SetShouldFail(true, errors.New("connection refused"))
			p := testPrincipal{key: aliceUUID}
			Expect(engine.Check(ctx, p, permission.KindView, "")).To(BeFalse())
		})
	})

	Describe("Revoke", func() {
		const aliceUUID = "11111111-1111-4111-8111-111111111111"

		It("removes a grant and is a no-op for absent grants", func() {
			self := permission.UserPrincipal(aliceUUID)
			Expect(engine.Grant(ctx, permission.KindView, self, "")).To(Succeed())
			Expect(engine.Revoke(ctx, permission.KindView, self, "")).To(Succeed())
			Expect(engine.Revoke(ctx, permission.KindView, self, "")).To(Succeed())

			p := testPrincipal{key: aliceUUID}
			Expect(engine.Check(ctx, p, permission.KindView, "")).To(BeFalse())
		})
	})

	Describe("SyncStaffMembership", func() {
		const aliceUUID = "11111111-1111-4111-8111-111111111111"

		It("adds on promotion and removes on demotion", func() {
			Expect(engine.SyncStaffMembership(ctx, aliceUUID, true)).To(Succeed())
			Expect(store.members[permission.AdminsGroup][aliceUUID]).To(BeTrue())

			Expect(engine.SyncStaffMembership(ctx, aliceUUID, false)).To(Succeed())
			Expect(store.members[permission.AdminsGroup][aliceUUID]).To(BeFalse())
		})
	})

	Describe("KindForMethod", func() {
		It("maps HTTP methods to kinds", func() {
			kind, ok := permission.KindForMethod("GET")
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(permission.KindView))

			kind, ok = permission.KindForMethod("PATCH")
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(permission.KindChange))

			kind, ok = permission.KindForMethod("DELETE")
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(permission.KindDelete))

			_, ok = permission.KindForMethod("TRACE")
			Expect(ok).To(BeFalse())
		})
	})
})
