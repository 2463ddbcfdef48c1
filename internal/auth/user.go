// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package auth

import (
	"context"
	"crypto/md5" //nolint:gosec // gravatar addresses avatars by md5, not used for security
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the coarse capability tag carried by every user.
type Role string

// The only two roles. There is no third role and no implicit elevation.
const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// Field limits for registration and profile input.
const (
	MinEmailLength       = 6
	MaxEmailLength       = 255
	MinPasswordLength    = 8
	MaxPasswordLength    = 128
	MaxDisplayNameLength = 100
)

// ParseRole normalizes a role supplied at the boundary.
// An empty value means the default student role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleStudent:
		return RoleStudent, nil
	case RoleTutor:
		return RoleTutor, nil
	default:
		return "", oops.Code("AUTH_INVALID_ROLE").
			With("role", s).
			Wrapf(ErrInvalidInput, "unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor
}

func (r Role) String() string {
	return string(r)
}

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with a fresh ID.
// The email is stored normalized; the password hash must already be computed.
func NewUser(email, displayName, passwordHash string, role Role) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrapf(ErrInvalidInput, "password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ROLE").With("role", string(role)).Wrapf(ErrInvalidInput, "unknown role")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsTutor reports whether the user holds the tutor role.
func (u *User) IsTutor() bool {
	return u.Role == RoleTutor
}

// GravatarURL returns the identicon avatar URL for the user's email.
func (u *User) GravatarURL(size int) string {
	sum := md5.Sum([]byte(strings.ToLower(u.Email))) //nolint:gosec // see import
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=%d", hex.EncodeToString(sum[:]), size)
}

// NormalizeEmail trims and lowercases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks length bounds and that the value is a bare address.
func ValidateEmail(email string) error {
	if len(email) < MinEmailLength || len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("min", MinEmailLength).
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidInput, "email must be between %d and %d characters", MinEmailLength, MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrInvalidInput, "invalid email address")
	}
	return nil
}

// ValidatePassword checks the plaintext password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			With("max", MaxPasswordLength).
			Wrapf(ErrInvalidInput, "password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// ValidateDisplayName checks that a display name is present and bounded.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return oops.Code("AUTH_INVALID_NAME").Wrapf(ErrInvalidInput, "name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return oops.Code("AUTH_INVALID_NAME").
			With("max", MaxDisplayNameLength).
			Wrapf(ErrInvalidInput, "name must be at most %d characters", MaxDisplayNameLength)
	}
	return nil
}

// CapitalizeName upper-cases the first letter and lower-cases the rest,
// which is how registration has always stored display names.
func CapitalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	runes := []rune(strings.ToLower(name))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// UserRepository is the credential store.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail if the email is taken;
	// the storage layer enforces this, not the caller's pre-check.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateDisplayName changes only the display name.
	UpdateDisplayName(ctx context.Context, id ulid.ULID, name string) error

	// UpdatePasswordHash replaces the stored hash, e.g. after an algorithm upgrade.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*User, error)
}
