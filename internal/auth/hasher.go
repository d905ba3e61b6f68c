package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the password hashing primitive handed to the identity
// store. It also owns the minimum-length policy so callers stay
// hash-agnostic.
type BcryptHasher struct {
	Cost      int
	MinLength int
}

func NewBcryptHasher(cost, minLength int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if minLength == 0 {
		minLength = 8
	}
	return &BcryptHasher{Cost: cost, MinLength: minLength}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (h *BcryptHasher) Validate(password string) error {
	if len(password) < h.MinLength {
		return fmt.Errorf("password must be at least %d characters", h.MinLength)
	}
	return nil
}
