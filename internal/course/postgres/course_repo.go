// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/course"
)

const courseColumns = `id, title, category, created_at, updated_at`

// CourseRepository implements course.CourseRepository using PostgreSQL.
type CourseRepository struct {
	pool poolIface
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool poolIface) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// Create stores a new course.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID.String(), c.Title, c.Category, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return oops.Code("COURSE_CREATE_FAILED").
			With("operation", "insert course").
			With("title", c.Title).
			Wrap(err)
	}
	return nil
}

// Update replaces a course's title and category.
func (r *CourseRepository) Update(ctx context.Context, c *course.Course) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE courses SET title = $2, category = $3, updated_at = $4 WHERE id = $1
	`, c.ID.String(), c.Title, c.Category, c.UpdatedAt)
	if err != nil {
		return oops.Code("COURSE_UPDATE_FAILED").
			With("operation", "update course").
			With("course_id", c.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("COURSE_NOT_FOUND").With("course_id", c.ID.String()).Wrap(course.ErrNotFound)
	}
	return nil
}

// Get retrieves a course by ID.
func (r *CourseRepository) Get(ctx context.Context, id ulid.ULID) (*course.Course, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id.String())

	c, err := scanCourse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("COURSE_NOT_FOUND").With("course_id", id.String()).Wrap(course.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("COURSE_GET_FAILED").
			With("operation", "get course").
			With("course_id", id.String()).
			Wrap(err)
	}
	return c, nil
}

// List returns all courses ordered by creation time.
func (r *CourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at, id`)
	if err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").With("operation", "list courses").Wrap(err)
	}
	defer rows.Close()

	var courses []*course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, oops.Code("COURSE_LIST_FAILED").With("operation", "scan course row").Wrap(err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").With("operation", "iterate courses").Wrap(err)
	}
	return courses, nil
}

// scanCourse scans a single row into a Course.
// Callers are responsible for handling pgx.ErrNoRows.
func scanCourse(row pgx.Row) (*course.Course, error) {
	var (
		idStr string
		c     course.Course
	)
	if err := row.Scan(&idStr, &c.Title, &c.Category, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("COURSE_SCAN_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("COURSE_INVALID_ID").With("id", idStr).Wrap(err)
	}
	c.ID = id
	return &c, nil
}

var _ course.CourseRepository = (*CourseRepository)(nil)
