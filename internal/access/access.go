// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package access decides whether a user's role permits an action.
//
// Actions use ':' separated strings:
//   - "course:create"
//   - "course:edit:01ABC"
//   - "course:enroll:01ABC"
//
// Unknown actions and missing users are denied.
package access

import (
	"errors"

	"github.com/coursebook/coursebook/internal/auth"
)

// ErrPermissionDenied is returned when the user's role does not satisfy the action.
var ErrPermissionDenied = errors.New("permission denied")

// Decision is the result of an authorization check.
type Decision int

// Decisions. The zero value is Denied.
const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Authorize is the role check: the decision is Allowed iff role equals
// required. There is no hierarchy; a tutor cannot enroll and a student
// cannot edit.
func Authorize(role, required auth.Role) Decision {
	if role.Valid() && role == required {
		return Allowed
	}
	return Denied
}
