package postgres

import (
	"context"
	"errors"
	"strings"

	userdm "github.com/frahmantamala/account-service/internal/core/datamodel/user"
	"github.com/frahmantamala/account-service/internal/user"
	"gorm.io/gorm"
)

// PermissionHooks are invoked inside the same transaction as the user row
// write, so default grants and grant cleanup are atomic with the resource
// they belong to.
type PermissionHooks interface {
	UserCreated(ctx context.Context, tx *gorm.DB, userUUID, email string, isStaff bool) error
	UserDeleted(ctx context.Context, tx *gorm.DB, userUUID string) error
}

// UserRepository implements user.Repository using GORM.
type UserRepository struct {
	db    *gorm.DB
	hooks PermissionHooks
}

func NewUserRepository(db *gorm.DB, hooks PermissionHooks) *UserRepository {
	return &UserRepository{db: db, hooks: hooks}
}

// Create writes the row and runs the permission creation hook in one
// transaction. Either the user exists with its default grants or the
// insert never happened.
func (r *UserRepository) Create(ctx context.Context, u *userdm.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if isUniqueViolation(err) {
				return user.ErrDuplicate
			}
			return err
		}
		if r.hooks == nil {
			return nil
		}
		return r.hooks.UserCreated(ctx, tx, u.UUID, u.Email, u.IsStaff)
	})
}

func (r *UserRepository) GetByUUID(ctx context.Context, userUUID string) (*userdm.User, error) {
	var row userdm.User
	err := r.db.WithContext(ctx).Where("uuid = ?", userUUID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userdm.User, error) {
	var row userdm.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) List(ctx context.Context, excludeEmail string) ([]*userdm.User, error) {
	var rows []*userdm.User
	q := r.db.WithContext(ctx).Order("date_joined ASC")
	if excludeEmail != "" {
		q = q.Where("email <> ?", excludeEmail)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *UserRepository) Update(ctx context.Context, u *userdm.User) error {
	err := r.db.WithContext(ctx).Save(u).Error
	if err != nil && isUniqueViolation(err) {
		return user.ErrDuplicate
	}
	return err
}

// Delete runs the permission deletion hook before removing the row, in one
// transaction, so grants cannot survive a resource that no longer exists.
func (r *UserRepository) Delete(ctx context.Context, u *userdm.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.hooks != nil {
			if err := r.hooks.UserDeleted(ctx, tx, u.UUID); err != nil {
				return err
			}
		}
		return tx.Where("uuid = ?", u.UUID).Delete(&userdm.User{}).Error
	})
}

// isUniqueViolation matches both the postgres and the sqlite wording so
// the repository behaves the same under tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

var _ user.Repository = (*UserRepository)(nil)
