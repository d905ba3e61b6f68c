package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	Authenticate(dto LoginDTO) (AuthTokens, error)
	RefreshTokens(refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	LoadPrincipal(userUUID string) (*Principal, error)
}

type RepositoryAPI interface {
	GetCredentials(email string) (passwordHash string, userUUID string, err error)
	GetPrincipal(userUUID string) (*Principal, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userUUID, email string) (string, error)
	GenerateRefreshToken(userUUID, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Principal is the authenticated caller identity handed to the permission
// engine. The anonymous principal carries the reserved login identifier,
// no uuid, and so never matches a grant.
type Principal struct {
	UserUUID    string   `json:"user_uuid"`
	Email       string   `json:"email"`
	IsActive    bool     `json:"is_active"`
	IsStaff     bool     `json:"is_staff"`
	IsSuperuser bool     `json:"is_superuser"`
	Groups      []string `json:"groups,omitempty"`
	Anonymous   bool     `json:"-"`
}

func (p *Principal) PrincipalKey() string {
	if p.Anonymous {
		return ""
	}
	return p.UserUUID
}

func (p *Principal) Superuser() bool {
	return !p.Anonymous && p.IsSuperuser
}

func (p *Principal) GroupNames() []string {
	return p.Groups
}

// AnonymousPrincipal builds the synthetic identity for unauthenticated
// requests. It is never persisted as a regular user.
func AnonymousPrincipal(reservedEmail string) *Principal {
	return &Principal{Email: reservedEmail, Anonymous: true}
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Claims struct {
	UserUUID string `json:"user_uuid"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserInactive       = errors.New("user is inactive")
)

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
