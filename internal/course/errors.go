// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package course

import "errors"

// Sentinel errors. Match with errors.Is.
var (
	// ErrNotFound is returned when a course does not exist.
	ErrNotFound = errors.New("course not found")

	// ErrAlreadyEnrolled is returned when the user already holds an
	// enrollment for the course.
	ErrAlreadyEnrolled = errors.New("already enrolled")

	// ErrInvalidInput is returned when course fields are malformed.
	ErrInvalidInput = errors.New("invalid course input")
)
