// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars

	DefaultShortSessionTTL = 24 * time.Hour
	DefaultLongSessionTTL  = 30 * 24 * time.Hour
)

// SessionState is the lifecycle state of a session at a point in time.
type SessionState int

// Session states. Expired and Revoked are terminal.
const (
	SessionActive SessionState = iota
	SessionExpired
	SessionRevoked
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionExpired:
		return "expired"
	case SessionRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// ClientInfo describes the client a session was issued to.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// Session is server-side proof that a user authenticated.
// Only the hash of the client token is stored.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	Remember  bool
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// NewSession creates a validated Session.
func NewSession(userID ulid.ULID, tokenHash string, remember bool, client ClientInfo, createdAt, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("created_at", createdAt).
			With("expires_at", expiresAt).
			Errorf("expiry must be after creation")
	}

	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		Remember:  remember,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// StateAt returns the session state at t. Revocation takes precedence over expiry.
func (s *Session) StateAt(t time.Time) SessionState {
	if s.RevokedAt != nil {
		return SessionRevoked
	}
	if !t.Before(s.ExpiresAt) {
		return SessionExpired
	}
	return SessionActive
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored in the database.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash, revoked or not.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Revoke sets revoked_at if it is not already set. Revoking an unknown
	// or already revoked session is not an error.
	Revoke(ctx context.Context, id ulid.ULID, at time.Time) error

	// RevokeByUser revokes every live session of a user.
	RevokeByUser(ctx context.Context, userID ulid.ULID, at time.Time) (int64, error)

	// DeleteInactive removes sessions that expired or were revoked before cutoff
	// and returns the count of deleted records.
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}
