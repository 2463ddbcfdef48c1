// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package coursetest provides in-memory course repositories for tests.
package coursetest

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/coursebook/coursebook/internal/course"
)

// Store is an in-memory CourseRepository and EnrollmentRepository. The
// (user, course) uniqueness is enforced inside Create.
type Store struct {
	mu          sync.Mutex
	courses     map[ulid.ULID]course.Course
	enrollments map[ulid.ULID]course.Enrollment
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		courses:     make(map[ulid.ULID]course.Course),
		enrollments: make(map[ulid.ULID]course.Enrollment),
	}
}

// Courses returns the store as a CourseRepository.
func (s *Store) Courses() course.CourseRepository { return courseRepo{s} }

// Enrollments returns the store as an EnrollmentRepository.
func (s *Store) Enrollments() course.EnrollmentRepository { return enrollmentRepo{s} }

// EnrollmentCount returns the total number of stored enrollments.
func (s *Store) EnrollmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enrollments)
}

type courseRepo struct{ s *Store }

func (r courseRepo) Create(_ context.Context, c *course.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.courses[c.ID] = *c
	return nil
}

func (r courseRepo) Update(_ context.Context, c *course.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.courses[c.ID]
	if !ok {
		return course.ErrNotFound
	}
	existing.Title = c.Title
	existing.Category = c.Category
	existing.UpdatedAt = c.UpdatedAt
	r.s.courses[c.ID] = existing
	return nil
}

func (r courseRepo) Get(_ context.Context, id ulid.ULID) (*course.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, course.ErrNotFound
	}
	return &c, nil
}

func (r courseRepo) List(_ context.Context) ([]*course.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*course.Course, 0, len(r.s.courses))
	for _, c := range r.s.courses {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, nil
}

type enrollmentRepo struct{ s *Store }

func (r enrollmentRepo) Create(_ context.Context, e *course.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return course.ErrAlreadyEnrolled
		}
	}
	r.s.enrollments[e.ID] = *e
	return nil
}

func (r enrollmentRepo) Exists(_ context.Context, userID, courseID ulid.ULID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (r enrollmentRepo) ListByUser(_ context.Context, userID ulid.ULID) ([]*course.EnrolledCourse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*course.EnrolledCourse
	for _, e := range r.s.enrollments {
		if e.UserID != userID {
			continue
		}
		c := r.s.courses[e.CourseID]
		out = append(out, &course.EnrolledCourse{Enrollment: e, Title: c.Title, Category: c.Category})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, nil
}

func (r enrollmentRepo) CountByCourse(_ context.Context, courseID ulid.ULID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, e := range r.s.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}
