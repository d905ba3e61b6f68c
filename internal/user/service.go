package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/account-service/internal"
	userdm "github.com/frahmantamala/account-service/internal/core/datamodel/user"
	"github.com/frahmantamala/account-service/internal/core/events"
	"github.com/google/uuid"
)

// Repository persists user rows. Create and Delete run the permission
// hooks inside the same transaction as the row write, so a user never
// exists without its default grants and grants never outlive their target.
type Repository interface {
	Create(ctx context.Context, u *userdm.User) error
	GetByUUID(ctx context.Context, userUUID string) (*userdm.User, error)
	GetByEmail(ctx context.Context, email string) (*userdm.User, error)
	List(ctx context.Context, excludeEmail string) ([]*userdm.User, error)
	Update(ctx context.Context, u *userdm.User) error
	Delete(ctx context.Context, u *userdm.User) error
}

// ErrDuplicate is returned by repositories when the normalized login
// identifier is already registered.
var ErrDuplicate = errors.New("email already registered")

// PasswordHasher is the pluggable hash primitive. Validate owns the
// password policy so the service stays hash-agnostic.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
	Validate(password string) error
}

// MembershipSyncer keeps admins-group membership in line with staff flag
// changes after creation; the creation hook handles the initial state.
type MembershipSyncer interface {
	SyncStaffMembership(ctx context.Context, userUUID string, isStaff bool) error
}

type Service struct {
	repo           Repository
	hasher         PasswordHasher
	membership     MembershipSyncer
	bus            *events.EventBus
	anonymousEmail string
	logger         *slog.Logger
}

func NewService(repo Repository, hasher PasswordHasher, membership MembershipSyncer, bus *events.EventBus, anonymousEmail string, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		hasher:         hasher,
		membership:     membership,
		bus:            bus,
		anonymousEmail: anonymousEmail,
		logger:         logger,
	}
}

// Create registers a new account. The permission creation hook runs inside
// the repository transaction; the welcome notification is published after
// commit and never affects the outcome.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	email, err := s.normalizedEmail(dto.Email)
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Validate(dto.Password); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodePasswordTooShort)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, internal.ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := &userdm.User{
		UUID:         uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		IsActive:     true,
		DateJoined:   time.Now(),
	}

	if err := s.repo.Create(ctx, row); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, internal.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", "user_uuid", row.UUID)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewUserCreatedEvent(row.UUID, row.Email))
	}

	return FromDataModel(row), nil
}

// Get retrieves a user by external identifier. The reserved anonymous
// account is invisible here, like everywhere else.
func (s *Service) Get(ctx context.Context, userUUID string) (*User, error) {
	row, err := s.repo.GetByUUID(ctx, userUUID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if row.Email == s.anonymousEmail {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

// GetByEmail resolves a login identifier to a user.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if row.Email == s.anonymousEmail {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

// List returns every user except the reserved anonymous account.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	rows, err := s.repo.List(ctx, s.anonymousEmail)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*User, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// Update applies a partial update. Staff and superuser flags are only
// honored when the acting principal is staff; a staff toggle also syncs
// admins-group membership.
func (s *Service) Update(ctx context.Context, userUUID string, dto UpdateUserDTO, actorIsStaff bool) (*User, error) {
	row, err := s.repo.GetByUUID(ctx, userUUID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if row.Email == s.anonymousEmail {
		return nil, internal.ErrUserNotFound
	}

	if (dto.IsStaff != nil || dto.IsSuperuser != nil) && !actorIsStaff {
		return nil, internal.ErrPermissionDenied
	}

	if dto.Email != nil && NormalizeEmail(*dto.Email) != row.Email {
		email, err := s.normalizedEmail(*dto.Email)
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			return nil, internal.ErrDuplicateEmail
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check existing email: %w", err)
		}
		row.Email = email
	}

	if dto.Password != nil {
		if err := s.hasher.Validate(*dto.Password); err != nil {
			return nil, internal.NewValidationError(err.Error(), internal.ErrCodePasswordTooShort)
		}
		hash, err := s.hasher.Hash(*dto.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		row.PasswordHash = hash
	}

	if dto.FirstName != nil {
		row.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		row.LastName = *dto.LastName
	}
	if dto.IsActive != nil {
		row.IsActive = *dto.IsActive
	}

	staffChanged := false
	if dto.IsStaff != nil && *dto.IsStaff != row.IsStaff {
		row.IsStaff = *dto.IsStaff
		staffChanged = true
	}
	if dto.IsSuperuser != nil {
		row.IsSuperuser = *dto.IsSuperuser
	}

	if err := s.repo.Update(ctx, row); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, internal.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	if staffChanged && s.membership != nil {
		if err := s.membership.SyncStaffMembership(ctx, row.UUID, row.IsStaff); err != nil {
			s.logger.Error("failed to sync admins membership", "user_uuid", row.UUID, "error", err)
		}
	}

	return FromDataModel(row), nil
}

// Delete removes a user. The deletion hook purges every grant targeting
// the resource before the row goes away, inside one transaction.
func (s *Service) Delete(ctx context.Context, userUUID string) error {
	row, err := s.repo.GetByUUID(ctx, userUUID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if row.Email == s.anonymousEmail {
		return internal.ErrUserNotFound
	}

	if err := s.repo.Delete(ctx, row); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("user deleted", "user_uuid", row.UUID)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewUserDeletedEvent(row.UUID, row.Email))
	}

	return nil
}

func (s *Service) normalizedEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if err := ValidateEmail(normalized); err != nil {
		return "", internal.ErrInvalidEmail.WithCause(err)
	}
	if normalized == s.anonymousEmail {
		// the reserved identifier is not registrable
		return "", internal.ErrInvalidEmail
	}
	return normalized, nil
}
