package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/account-service/internal/auth"
	"github.com/frahmantamala/account-service/internal/permission"
	"github.com/frahmantamala/account-service/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockChecker implements user.PermissionChecker over an in-memory set of
// allowed (principal, kind, target) triples. Scopes match exactly, like the
// real engine: a model-wide entry never satisfies an object-targeted check.
type MockChecker struct {
	allowed map[string]map[permission.Kind]map[string]bool
}

func NewMockChecker() *MockChecker {
	return &MockChecker{allowed: make(map[string]map[permission.Kind]map[string]bool)}
}

func (m *MockChecker) Allow(principalKey string, kind permission.Kind, target string) {
	if m.allowed[principalKey] == nil {
		m.allowed[principalKey] = make(map[permission.Kind]map[string]bool)
	}
	if m.allowed[principalKey][kind] == nil {
		m.allowed[principalKey][kind] = make(map[string]bool)
	}
	m.allowed[principalKey][kind][target] = true
}

func (m *MockChecker) Check(_ context.Context, p permission.Principal, kind permission.Kind, target string) bool {
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
	return m.allowed[key][kind][target]
}

const uuidPattern = "[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"

var _ = Describe("User Handler", func() {
	var (
		mockRepo *MockRepository
		checker  *MockChecker
		service  *user.Service
		router   *chi.Mux
	)

	const anonymousEmail = "anonymous@localhost"

	// principalMiddleware injects p the way the auth middleware would.
	withPrincipal := func(p *auth.Principal) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
			})
		}
	}

	buildRouter := func(p *auth.Principal) {
		handler := user.NewHandler(service, checker)
		router = chi.NewRouter()
		router.Group(func(pr chi.Router) {
			pr.Use(withPrincipal(p))
			pr.Route("/users", func(ur chi.Router) {
				ur.Get("/", handler.List)
				ur.Post("/", handler.Create)
				ur.Route("/{uuid:"+uuidPattern+"}", func(dr chi.Router) {
					dr.Get("/", handler.Retrieve)
					dr.Put("/", handler.Update)
					dr.Patch("/", handler.Update)
					dr.Delete("/", handler.Delete)
				})
			})
		})
	}

	createUser := func(email string) *user.User {
		created, err := service.Create(context.Background(), user.CreateUserDTO{
			Email:    email,
			Password: "correct horse",
		})
		Expect(err).NotTo(HaveOccurred())
		return created
	}

	// selfGrants mirrors the creation hook for one user.
	selfGrants := func(u *user.User) {
		for _, kind := range []permission.Kind{permission.KindChange, permission.KindDelete, permission.KindView} {
			checker.Allow(u.UUID, kind, "")
			checker.Allow(u.UUID, kind, u.UUID)
		}
	}

	BeforeEach(func() {
		mockRepo = NewMockRepository()
		checker = NewMockChecker()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = user.NewService(mockRepo, &MockHasher{minLength: 8}, NewMockMembership(), nil, anonymousEmail, logger)
	})

	Describe("GET /users/", func() {
		It("returns 403 for anonymous callers", func() {
			buildRouter(auth.AnonymousPrincipal(anonymousEmail))

			req := httptest.NewRequest(http.MethodGet, "/users/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("returns only the caller's own record for regular users", func() {
			alice := createUser("alice@example.com")
			createUser("bob@example.com")
			selfGrants(alice)

			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			req := httptest.NewRequest(http.MethodGet, "/users/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body []user.Response
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveLen(1))
			Expect(body[0].Email).To(Equal("alice@example.com"))
		})

		It("returns an empty list when the caller's own record is gone", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: "ghost@example.com", IsActive: true})

			req := httptest.NewRequest(http.MethodGet, "/users/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body []user.Response
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(BeEmpty())
		})

		It("surfaces a failing self lookup as 500, not an empty list", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})
			mockRepo.SetShouldFail(true, errors.New("connection refused"))

			req := httptest.NewRequest(http.MethodGet, "/users/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})

		It("returns every user for staff", func() {
			createUser("alice@example.com")
			createUser("bob@example.com")
			admin := createUser("admin@example.com")

			buildRouter(&auth.Principal{UserUUID: admin.UUID, Email: admin.Email, IsActive: true, IsStaff: true})

			req := httptest.NewRequest(http.MethodGet, "/users/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body []user.Response
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveLen(3))
		})
	})

	Describe("GET /users/{uuid}/", func() {
		It("returns the caller's own record", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			req := httptest.NewRequest(http.MethodGet, "/users/"+alice.UUID+"/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body user.Response
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.UUID).To(Equal(alice.UUID))
		})

		It("hides other users from non-staff callers as 404", func() {
			alice := createUser("alice@example.com")
			bob := createUser("bob@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			req := httptest.NewRequest(http.MethodGet, "/users/"+bob.UUID+"/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("lets staff with an object grant see any user", func() {
			bob := createUser("bob@example.com")
			admin := createUser("admin@example.com")
			checker.Allow(admin.UUID, permission.KindView, bob.UUID)
			buildRouter(&auth.Principal{UserUUID: admin.UUID, Email: admin.Email, IsActive: true, IsStaff: true})

			req := httptest.NewRequest(http.MethodGet, "/users/"+bob.UUID+"/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("returns 404 for an absent uuid", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			req := httptest.NewRequest(http.MethodGet, "/users/99999999-9999-4999-8999-999999999999/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("rejects a malformed uuid at the router", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			req := httptest.NewRequest(http.MethodGet, "/users/not-a-uuid/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /users/", func() {
		It("is open to anonymous callers and returns uuid and email only", func() {
			buildRouter(auth.AnonymousPrincipal(anonymousEmail))

			payload, _ := json.Marshal(user.CreateUserDTO{
				Email:    "alice@example.com",
				Password: "correct horse",
			})
			req := httptest.NewRequest(http.MethodPost, "/users/", bytes.NewReader(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKey("uuid"))
			Expect(body["email"]).To(Equal("alice@example.com"))
			Expect(body).NotTo(HaveKey("password"))
		})

		It("rejects an invalid payload", func() {
			buildRouter(auth.AnonymousPrincipal(anonymousEmail))

			req := httptest.NewRequest(http.MethodPost, "/users/", bytes.NewReader([]byte("{not json")))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("surfaces a duplicate email as 400", func() {
			createUser("alice@example.com")
			buildRouter(auth.AnonymousPrincipal(anonymousEmail))

			payload, _ := json.Marshal(user.CreateUserDTO{
				Email:    "alice@example.com",
				Password: "correct horse",
			})
			req := httptest.NewRequest(http.MethodPost, "/users/", bytes.NewReader(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("PATCH /users/{uuid}/", func() {
		It("updates the caller's own record", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			payload := []byte(`{"first_name":"Alice"}`)
			req := httptest.NewRequest(http.MethodPatch, "/users/"+alice.UUID+"/", bytes.NewReader(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body user.Response
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.FirstName).To(Equal("Alice"))
		})

		It("rejects staff flag escalation by non-staff callers", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			payload := []byte(`{"is_staff":true}`)
			req := httptest.NewRequest(http.MethodPatch, "/users/"+alice.UUID+"/", bytes.NewReader(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("hides other users' records as 404", func() {
			alice := createUser("alice@example.com")
			bob := createUser("bob@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			payload := []byte(`{"first_name":"X"}`)
			req := httptest.NewRequest(http.MethodPatch, "/users/"+bob.UUID+"/", bytes.NewReader(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /users/{uuid}/", func() {
		It("deletes the caller's own record with 204", func() {
			alice := createUser("alice@example.com")
			selfGrants(alice)
			buildRouter(&auth.Principal{UserUUID: alice.UUID, Email: alice.Email, IsActive: true})

			req := httptest.NewRequest(http.MethodDelete, "/users/"+alice.UUID+"/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))

			_, err := service.Get(context.Background(), alice.UUID)
			Expect(err).To(HaveOccurred())
		})

		It("returns 403 for anonymous callers", func() {
			alice := createUser("alice@example.com")
			buildRouter(auth.AnonymousPrincipal(anonymousEmail))

			req := httptest.NewRequest(http.MethodDelete, "/users/"+alice.UUID+"/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})
})
