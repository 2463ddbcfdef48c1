// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursebook/coursebook/pkg/errutil"
)

// DefaultSessionRetention is how long expired or revoked sessions are kept
// before the sweeper deletes them.
const DefaultSessionRetention = 7 * 24 * time.Hour

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// ShortTTL is the lifetime of a normal session.
	ShortTTL time.Duration
	// LongTTL is the lifetime of a "remember me" session.
	LongTTL time.Duration
	// Retention is how long inactive sessions stay in the store.
	Retention time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (c *SessionConfig) applyDefaults() {
	if c.ShortTTL == 0 {
		c.ShortTTL = DefaultShortSessionTTL
	}
	if c.LongTTL == 0 {
		c.LongTTL = DefaultLongSessionTTL
	}
	if c.Retention == 0 {
		c.Retention = DefaultSessionRetention
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// SessionManager issues, validates and revokes login sessions.
type SessionManager struct {
	repo   SessionRepository
	cfg    SessionConfig
	logger *slog.Logger
}

// NewSessionManager creates a SessionManager. Zero config fields take defaults.
// If logger is nil, slog.Default() is used.
func NewSessionManager(repo SessionRepository, cfg SessionConfig, logger *slog.Logger) (*SessionManager, error) {
	if repo == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session repository is required")
	}
	cfg.applyDefaults()
	if cfg.ShortTTL < 0 || cfg.LongTTL <= cfg.ShortTTL {
		return nil, oops.Code("SESSION_MANAGER_INVALID").
			With("short_ttl", cfg.ShortTTL.String()).
			With("long_ttl", cfg.LongTTL.String()).
			Errorf("long session TTL must exceed short session TTL")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{repo: repo, cfg: cfg, logger: logger}, nil
}

// ShortTTL returns the lifetime of a normal session.
func (m *SessionManager) ShortTTL() time.Duration { return m.cfg.ShortTTL }

// LongTTL returns the lifetime of a "remember me" session.
func (m *SessionManager) LongTTL() time.Duration { return m.cfg.LongTTL }

// Issue creates a session for userID and returns it with the plaintext token.
func (m *SessionManager) Issue(ctx context.Context, userID ulid.ULID, remember bool, client ClientInfo) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	now := m.cfg.Now().UTC()
	ttl := m.cfg.ShortTTL
	if remember {
		ttl = m.cfg.LongTTL
	}

	session, err := NewSession(userID, tokenHash, remember, client, now, now.Add(ttl))
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	return session, token, nil
}

// Validate returns the active session for token.
// Fails with ErrNoSession, ErrSessionExpired or ErrSessionRevoked.
func (m *SessionManager) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrapf(ErrNoSession, "session token cannot be empty")
	}

	session, err := m.repo.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_NOT_FOUND").Wrapf(ErrNoSession, "invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	switch session.StateAt(m.cfg.Now()) {
	case SessionRevoked:
		return nil, oops.Code("SESSION_REVOKED").
			With("session_id", session.ID.String()).
			Wrapf(ErrSessionRevoked, "session was logged out")
	case SessionExpired:
		return nil, oops.Code("SESSION_EXPIRED").
			With("session_id", session.ID.String()).
			With("expired_at", session.ExpiresAt).
			Wrapf(ErrSessionExpired, "session has expired")
	}

	return session, nil
}

// Revoke marks the session for token as revoked. It is idempotent: an empty,
// unknown or already revoked token is not an error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := m.repo.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	if session.RevokedAt != nil {
		return nil
	}

	if err := m.repo.Revoke(ctx, session.ID, m.cfg.Now().UTC()); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// RevokeAllForUser revokes every live session belonging to userID.
func (m *SessionManager) RevokeAllForUser(ctx context.Context, userID ulid.ULID) (int64, error) {
	n, err := m.repo.RevokeByUser(ctx, userID, m.cfg.Now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return n, nil
}

// Sweep deletes sessions that have been inactive for longer than the retention window.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	cutoff := m.cfg.Now().UTC().Add(-m.cfg.Retention)
	n, err := m.repo.DeleteInactive(ctx, cutoff)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("cutoff", cutoff).
			Wrap(err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
// Validation never depends on the sweeper; it only keeps the table small.
func (m *SessionManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogError(ctx, m.logger, "session sweep failed", err)
				continue
			}
			if n > 0 {
				m.logger.InfoContext(ctx, "swept inactive sessions", "deleted", n)
			}
		}
	}
}
