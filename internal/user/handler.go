package user

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/account-service/internal"
	"github.com/frahmantamala/account-service/internal/auth"
	"github.com/frahmantamala/account-service/internal/permission"
	"github.com/frahmantamala/account-service/internal/transport"
	"github.com/frahmantamala/account-service/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, dto CreateUserDTO) (*User, error)
	Get(ctx context.Context, userUUID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, userUUID string, dto UpdateUserDTO, actorIsStaff bool) (*User, error)
	Delete(ctx context.Context, userUUID string) error
}

// PermissionChecker is the slice of the permission engine the handlers
// consume: a yes/no answer, never an error.
type PermissionChecker interface {
	Check(ctx context.Context, p permission.Principal, kind permission.Kind, target string) bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Perms   PermissionChecker
}

func NewHandler(svc ServiceAPI, perms PermissionChecker) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Perms:       perms,
	}
}

// List handles GET /users/. Staff see every user; everyone else sees at
// most themselves. Callers with no view right anywhere get 403, not an
// empty list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	if !h.hasCollectionAccess(r.Context(), p, permission.KindView) {
		h.WriteError(w, http.StatusForbidden, "permission denied")
		return
	}

	if p.IsStaff {
		users, err := h.Service.List(r.Context())
		if err != nil {
			h.Logger.Error("List: service error", "error", err)
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, ToResponses(users))
		return
	}

	// non-staff scope: the caller's own record, zero or one elements
	self, err := h.Service.GetByEmail(r.Context(), p.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			h.WriteJSON(w, http.StatusOK, []Response{})
			return
		}
		h.Logger.Error("List: self lookup failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, []Response{ToResponse(self)})
}

// Retrieve handles GET /users/{uuid}/. Absent targets and targets the
// caller may not see produce the same 404 so existence never leaks.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	if !h.hasCollectionAccess(r.Context(), p, permission.KindView) {
		h.WriteError(w, http.StatusForbidden, "permission denied")
		return
	}

	target, ok := h.visibleTarget(w, r, p, permission.KindView)
	if !ok {
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponse(target))
}

// Create handles POST /users/. Signup is open to anonymous callers; the
// password is consumed and never echoed.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Create: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.Logger.Error("Create: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Create: user registered", "user_uuid", created.UUID)
	h.WriteJSON(w, http.StatusOK, CreatedResponse{UUID: created.UUID, Email: created.Email})
}

// Update handles PUT and PATCH /users/{uuid}/.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	if !h.hasCollectionAccess(r.Context(), p, permission.KindChange) {
		h.WriteError(w, http.StatusForbidden, "permission denied")
		return
	}

	target, ok := h.visibleTarget(w, r, p, permission.KindChange)
	if !ok {
		return
	}

	var dto UpdateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Update: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Service.Update(r.Context(), target.UUID, dto, p.IsStaff)
	if err != nil {
		h.Logger.Error("Update: service error", "error", err, "user_uuid", target.UUID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponse(updated))
}

// Delete handles DELETE /users/{uuid}/ and triggers the permission
// deletion hook through the identity store.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	if !h.hasCollectionAccess(r.Context(), p, permission.KindDelete) {
		h.WriteError(w, http.StatusForbidden, "permission denied")
		return
	}

	target, ok := h.visibleTarget(w, r, p, permission.KindDelete)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), target.UUID); err != nil {
		h.Logger.Error("Delete: service error", "error", err, "user_uuid", target.UUID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// hasCollectionAccess is the model-level gate: staff pass outright,
// everyone else needs some grant of kind somewhere. Failing here is a 403,
// not a 404, because no specific target has been named yet.
func (h *Handler) hasCollectionAccess(ctx context.Context, p *auth.Principal, kind permission.Kind) bool {
	if p == nil {
		return false
	}
	if p.IsStaff {
		return true
	}
	return h.Perms.Check(ctx, p, kind, "")
}

// visibleTarget resolves the uuid path segment against the caller's
// visible set and the object-level grant for kind. Any failure writes 404:
// absent, invisible and unauthorized targets are indistinguishable.
func (h *Handler) visibleTarget(w http.ResponseWriter, r *http.Request, p *auth.Principal, kind permission.Kind) (*User, bool) {
	userUUID := chi.URLParam(r, "uuid")

	target, err := h.Service.Get(r.Context(), userUUID)
	if err != nil {
		h.WriteError(w, http.StatusNotFound, "not found")
		return nil, false
	}

	if !p.IsStaff && target.Email != p.Email {
		h.WriteError(w, http.StatusNotFound, "not found")
		return nil, false
	}

	if !h.Perms.Check(r.Context(), p, kind, target.UUID) {
		h.WriteError(w, http.StatusNotFound, "not found")
		return nil, false
	}

	return target, true
}
