// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/course"
	"github.com/coursebook/coursebook/internal/store"
)

// enrollmentsUserCourseKey is the unique constraint on (user_id, course_id).
const enrollmentsUserCourseKey = "enrollments_user_course_key"

// EnrollmentRepository implements course.EnrollmentRepository using PostgreSQL.
type EnrollmentRepository struct {
	pool poolIface
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool poolIface) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Create stores an enrollment. The unique constraint turns a concurrent
// duplicate into course.ErrAlreadyEnrolled; a missing course surfaces as
// course.ErrNotFound through the foreign key.
func (r *EnrollmentRepository) Create(ctx context.Context, e *course.Enrollment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrollments (id, user_id, course_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID.String(), e.UserID.String(), e.CourseID.String(), e.CreatedAt)
	if err != nil {
		switch {
		case store.IsUniqueViolation(err, enrollmentsUserCourseKey):
			return oops.Code("ALREADY_ENROLLED").
				With("course_id", e.CourseID.String()).
				Wrap(course.ErrAlreadyEnrolled)
		case store.IsForeignKeyViolation(err):
			return oops.Code("COURSE_NOT_FOUND").
				With("course_id", e.CourseID.String()).
				Wrap(course.ErrNotFound)
		}
		return oops.Code("ENROLLMENT_CREATE_FAILED").
			With("operation", "insert enrollment").
			With("course_id", e.CourseID.String()).
			Wrap(err)
	}
	return nil
}

// Exists reports whether the user is enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, courseID ulid.ULID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)
	`, userID.String(), courseID.String()).Scan(&exists)
	if err != nil {
		return false, oops.Code("ENROLLMENT_EXISTS_FAILED").
			With("course_id", courseID.String()).
			Wrap(err)
	}
	return exists, nil
}

// ListByUser returns the user's enrollments joined with course details.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*course.EnrolledCourse, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.course_id, e.created_at, c.title, c.category
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1
		ORDER BY e.created_at, e.id
	`, userID.String())
	if err != nil {
		return nil, oops.Code("ENROLLMENT_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var out []*course.EnrolledCourse
	for rows.Next() {
		var (
			idStr, courseIDStr string
			ec                 course.EnrolledCourse
		)
		if err := rows.Scan(&idStr, &courseIDStr, &ec.CreatedAt, &ec.Title, &ec.Category); err != nil {
			return nil, oops.Code("ENROLLMENT_LIST_FAILED").With("operation", "scan enrollment row").Wrap(err)
		}
		if ec.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("ENROLLMENT_INVALID_ID").With("id", idStr).Wrap(err)
		}
		if ec.CourseID, err = ulid.Parse(courseIDStr); err != nil {
			return nil, oops.Code("ENROLLMENT_INVALID_ID").With("course_id", courseIDStr).Wrap(err)
		}
		ec.UserID = userID
		out = append(out, &ec)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ENROLLMENT_LIST_FAILED").With("operation", "iterate enrollments").Wrap(err)
	}
	return out, nil
}

// CountByCourse returns the number of enrollments for a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID ulid.ULID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM enrollments WHERE course_id = $1
	`, courseID.String()).Scan(&n)
	if err != nil {
		return 0, oops.Code("ENROLLMENT_COUNT_FAILED").
			With("course_id", courseID.String()).
			Wrap(err)
	}
	return n, nil
}

var _ course.EnrollmentRepository = (*EnrollmentRepository)(nil)
