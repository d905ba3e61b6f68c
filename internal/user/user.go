package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	userdm "github.com/frahmantamala/account-service/internal/core/datamodel/user"
	"github.com/frahmantamala/account-service/internal/permission"
)

// User is the domain model for an account. The internal row id stays in
// the datastore layer; everything external addresses users by UUID.
type User struct {
	UUID         string    `json:"uuid"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	DateJoined   time.Time `json:"date_joined"`
	PasswordHash string    `json:"-"`
	Groups       []string  `json:"-"`
}

// The capability interfaces below split what the original entity mixed
// into one inheritance chain: signing in, holding grants, and belonging
// to groups. User implements all three.

// Authenticatable is an entity that can sign in.
type Authenticatable interface {
	LoginID() string
	ActiveAccount() bool
}

// PermissionPrincipal is an entity that can hold permission grants.
type PermissionPrincipal interface {
	PrincipalKey() string
	Superuser() bool
}

// GroupAware exposes group membership for grant inheritance.
type GroupAware interface {
	GroupNames() []string
}

var (
	_ Authenticatable      = (*User)(nil)
	_ PermissionPrincipal  = (*User)(nil)
	_ GroupAware           = (*User)(nil)
	_ permission.Principal = (*User)(nil)
)

func (u *User) LoginID() string     { return u.Email }
func (u *User) ActiveAccount() bool { return u.IsActive }

func (u *User) PrincipalKey() string { return u.UUID }
func (u *User) Superuser() bool      { return u.IsSuperuser }

func (u *User) GroupNames() []string { return u.Groups }

// FullName returns first and last name with a space in between.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) ShortName() string {
	return u.FirstName
}

var ErrNotFound = errors.New("user not found")

// NormalizeEmail lowercases the domain part of the address, matching how
// login identifiers are stored and compared everywhere else.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// ValidateEmail rejects anything that does not parse as a bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("malformed email address")
	}
	if !strings.Contains(strings.SplitN(email, "@", 2)[1], ".") {
		return errors.New("email domain is incomplete")
	}
	return nil
}

func ToDataModel(u *User) *userdm.User {
	return &userdm.User{
		UUID:         u.UUID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsActive:     u.IsActive,
		IsStaff:      u.IsStaff,
		IsSuperuser:  u.IsSuperuser,
		DateJoined:   u.DateJoined,
	}
}

func FromDataModel(m *userdm.User) *User {
	return &User{
		UUID:         m.UUID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		IsActive:     m.IsActive,
		IsStaff:      m.IsStaff,
		IsSuperuser:  m.IsSuperuser,
		DateJoined:   m.DateJoined,
		Groups:       []string{},
	}
}
