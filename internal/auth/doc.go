// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package auth provides authentication for Coursebook.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a normalized email and validated role
//   - NewSession - creates a Session with a validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Services
//
//   - PasswordHasher - argon2id hashing with legacy bcrypt verification
//   - SessionManager - issue, validate and revoke login sessions
//   - Service - registration, login, logout and session lookup
//
// Errors wrap the package sentinels (ErrDuplicateEmail, ErrInvalidCredentials,
// ErrNoSession, ...) so callers can branch with errors.Is.
package auth
