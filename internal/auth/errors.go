// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package auth

import "errors"

// Sentinel errors. Callers match them with errors.Is; the oops codes attached
// by this package are for logs.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an account with the email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidHashFormat is returned when a stored password hash cannot be parsed.
	ErrInvalidHashFormat = errors.New("invalid password hash format")

	// ErrInvalidInput is returned when registration or profile input is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoSession is returned when a session token is empty or unknown.
	ErrNoSession = errors.New("no session")

	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked is returned when a session was logged out.
	ErrSessionRevoked = errors.New("session revoked")
)
