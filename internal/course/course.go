// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package course manages the course catalog and enrollments.
package course

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits.
const (
	MaxTitleLength    = 150
	MaxCategoryLength = 50
)

// Course is a catalog entry.
type Course struct {
	ID        ulid.ULID
	Title     string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrollment records that a user joined a course. At most one exists per
// (UserID, CourseID).
type Enrollment struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	CourseID  ulid.ULID
	CreatedAt time.Time
}

// EnrolledCourse is an enrollment joined with its course, for listings.
type EnrolledCourse struct {
	Enrollment
	Title    string
	Category string
}

// Input holds the editable course fields.
type Input struct {
	Title    string
	Category string
}

// Normalize trims surrounding whitespace.
func (in Input) Normalize() Input {
	return Input{Title: strings.TrimSpace(in.Title), Category: strings.TrimSpace(in.Category)}
}

// Validate checks that both fields are present and bounded.
func (in Input) Validate() error {
	if err := checkField("title", in.Title, MaxTitleLength); err != nil {
		return err
	}
	return checkField("category", in.Category, MaxCategoryLength)
}

func checkField(name, value string, maxLen int) error {
	if value == "" {
		return oops.Code("COURSE_INVALID_INPUT").
			With("field", name).
			Wrapf(ErrInvalidInput, "%s is required", name)
	}
	if utf8.RuneCountInString(value) > maxLen {
		return oops.Code("COURSE_INVALID_INPUT").
			With("field", name).
			With("max", maxLen).
			Wrapf(ErrInvalidInput, "%s must be at most %d characters", name, maxLen)
	}
	return nil
}

// CourseRepository persists courses.
//
//nolint:revive // course.CourseRepository reads better at call sites than course.Repository
type CourseRepository interface {
	Create(ctx context.Context, c *Course) error
	// Update replaces title and category. Returns ErrNotFound if missing.
	Update(ctx context.Context, c *Course) error
	// Get returns ErrNotFound if the course does not exist.
	Get(ctx context.Context, id ulid.ULID) (*Course, error)
	// List returns all courses ordered by creation time.
	List(ctx context.Context) ([]*Course, error)
}

// EnrollmentRepository persists enrollments.
type EnrollmentRepository interface {
	// Create stores an enrollment. Returns ErrAlreadyEnrolled when the
	// (user, course) pair exists; the storage layer enforces this.
	Create(ctx context.Context, e *Enrollment) error
	// Exists reports whether the user is enrolled in the course.
	Exists(ctx context.Context, userID, courseID ulid.ULID) (bool, error)
	// ListByUser returns the user's enrollments with course details.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*EnrolledCourse, error)
	// CountByCourse returns the number of enrollments for a course.
	CountByCourse(ctx context.Context, courseID ulid.ULID) (int, error)
}
