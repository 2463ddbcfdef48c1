// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/coursebook/coursebook/internal/auth"
)

// UserStore is an in-memory auth.UserRepository. Like the database it
// enforces email uniqueness at write time, comparing lowercased emails the way
// the LOWER(email) index does.
type UserStore struct {
	mu    sync.Mutex
	users map[ulid.ULID]auth.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[ulid.ULID]auth.User)}
}

// Create implements auth.UserRepository.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if auth.NormalizeEmail(u.Email) == auth.NormalizeEmail(user.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	s.users[user.ID] = *user
	return nil
}

// GetByID implements auth.UserRepository.
func (s *UserStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// GetByEmail implements auth.UserRepository.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if auth.NormalizeEmail(u.Email) == auth.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdateDisplayName implements auth.UserRepository.
func (s *UserStore) UpdateDisplayName(_ context.Context, id ulid.ULID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.DisplayName = name
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

// UpdatePasswordHash implements auth.UserRepository.
func (s *UserStore) UpdatePasswordHash(_ context.Context, id ulid.ULID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

// List implements auth.UserRepository.
func (s *UserStore) List(_ context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, nil
}

// Put stores a user directly, bypassing the uniqueness check.
func (s *UserStore) Put(user *auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
}

// Delete removes a user.
func (s *UserStore) Delete(id ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// SessionStore is an in-memory auth.SessionRepository.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[ulid.ULID]auth.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[ulid.ULID]auth.Session)}
}

// Create implements auth.SessionRepository.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// GetByTokenHash implements auth.SessionRepository.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.TokenHash == tokenHash {
			return &sess, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Revoke implements auth.SessionRepository.
func (s *SessionStore) Revoke(_ context.Context, id ulid.ULID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return nil
	}
	sess.RevokedAt = &at
	s.sessions[id] = sess
	return nil
}

// RevokeByUser implements auth.SessionRepository.
func (s *SessionStore) RevokeByUser(_ context.Context, userID ulid.ULID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			sess.RevokedAt = &at
			s.sessions[id] = sess
			n++
		}
	}
	return n, nil
}

// DeleteInactive implements auth.SessionRepository.
func (s *SessionStore) DeleteInactive(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) || (sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff)) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository    = (*UserStore)(nil)
	_ auth.SessionRepository = (*SessionStore)(nil)
)
