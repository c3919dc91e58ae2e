package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the cost used when hashing admin keys.
const bcryptCost = 10

// ErrAdminDisabled is returned when no admin key hash is configured.
var ErrAdminDisabled = errors.New("admin api disabled")

// HashAdminKey generates a bcrypt hash suitable for the admin_key_hash setting.
func HashAdminKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("admin key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash admin key: %w", err)
	}
	return string(hash), nil
}

// CompareAdminKey checks key against the configured hash.
func CompareAdminKey(hash, key string) error {
	if hash == "" {
		return ErrAdminDisabled
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
