// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package course

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/auth"
)

var tracer = otel.Tracer("coursebook/course")

// Service implements catalog and enrollment operations. Mutations are
// checked against the access gate before touching storage.
type Service struct {
	courses     CourseRepository
	enrollments EnrollmentRepository
	gate        *access.Gate
	logger      *slog.Logger
}

// NewService creates a Service. If logger is nil, slog.Default() is used.
func NewService(courses CourseRepository, enrollments EnrollmentRepository, gate *access.Gate, logger *slog.Logger) (*Service, error) {
	if courses == nil {
		return nil, oops.Code("COURSE_SERVICE_INVALID").Errorf("course repository is required")
	}
	if enrollments == nil {
		return nil, oops.Code("COURSE_SERVICE_INVALID").Errorf("enrollment repository is required")
	}
	if gate == nil {
		return nil, oops.Code("COURSE_SERVICE_INVALID").Errorf("access gate is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{courses: courses, enrollments: enrollments, gate: gate, logger: logger}, nil
}

// Create adds a course. Only tutors may create courses.
func (s *Service) Create(ctx context.Context, actor *auth.User, in Input) (c *Course, err error) {
	ctx, span := tracer.Start(ctx, "course.create", trace.WithAttributes(actorAttrs(actor)...))
	defer func() { finishSpan(span, err) }()

	if err := s.gate.Check(actor, access.ActionCourseCreate); err != nil {
		return nil, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c = &Course{
		ID:        ulid.Make(),
		Title:     in.Title,
		Category:  in.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.courses.Create(ctx, c); err != nil {
		return nil, oops.Code("COURSE_CREATE_FAILED").
			With("title", c.Title).
			Wrap(err)
	}

	span.SetAttributes(attribute.String("course.id", c.ID.String()))
	s.logger.InfoContext(ctx, "course created",
		"course_id", c.ID.String(),
		"user_id", actor.ID.String())
	return c, nil
}

// Update changes a course's title and category. Only tutors may edit.
func (s *Service) Update(ctx context.Context, actor *auth.User, id ulid.ULID, in Input) (*Course, error) {
	if err := s.gate.Check(actor, access.EditAction(id.String())); err != nil {
		return nil, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Title = in.Title
	c.Category = in.Category
	c.UpdatedAt = time.Now().UTC()

	if err := s.courses.Update(ctx, c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, oops.Code("COURSE_UPDATE_FAILED").
			With("course_id", id.String()).
			Wrap(err)
	}
	return c, nil
}

// Get returns a course by ID.
func (s *Service) Get(ctx context.Context, id ulid.ULID) (*Course, error) {
	c, err := s.courses.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, oops.Code("COURSE_GET_FAILED").
			With("course_id", id.String()).
			Wrap(err)
	}
	return c, nil
}

// List returns every course.
func (s *Service) List(ctx context.Context) ([]*Course, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").Wrap(err)
	}
	return courses, nil
}

// Enroll enrolls the actor in a course. Only students may enroll, and only
// once per course.
func (s *Service) Enroll(ctx context.Context, actor *auth.User, courseID ulid.ULID) (e *Enrollment, err error) {
	ctx, span := tracer.Start(ctx, "course.enroll", trace.WithAttributes(
		append(actorAttrs(actor), attribute.String("course.id", courseID.String()))...))
	defer func() { finishSpan(span, err) }()

	if err := s.gate.Check(actor, access.EnrollAction(courseID.String())); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}

	// Fast path for a friendly error; the unique index is what actually holds.
	exists, err := s.enrollments.Exists(ctx, actor.ID, courseID)
	if err != nil {
		return nil, oops.Code("ENROLL_FAILED").
			With("operation", "check enrollment").
			With("course_id", courseID.String()).
			Wrap(err)
	}
	if exists {
		return nil, alreadyEnrolled(courseID)
	}

	e = &Enrollment{
		ID:        ulid.Make(),
		UserID:    actor.ID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.enrollments.Create(ctx, e); err != nil {
		if errors.Is(err, ErrAlreadyEnrolled) {
			return nil, alreadyEnrolled(courseID)
		}
		return nil, oops.Code("ENROLL_FAILED").
			With("operation", "create enrollment").
			With("course_id", courseID.String()).
			Wrap(err)
	}
	return e, nil
}

// EnrollmentsFor returns the courses a user is enrolled in.
func (s *Service) EnrollmentsFor(ctx context.Context, userID ulid.ULID) ([]*EnrolledCourse, error) {
	list, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("ENROLLMENT_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return list, nil
}

// CountEnrollments returns how many users are enrolled in a course.
func (s *Service) CountEnrollments(ctx context.Context, courseID ulid.ULID) (int, error) {
	n, err := s.enrollments.CountByCourse(ctx, courseID)
	if err != nil {
		return 0, oops.Code("ENROLLMENT_COUNT_FAILED").
			With("course_id", courseID.String()).
			Wrap(err)
	}
	return n, nil
}

func actorAttrs(actor *auth.User) []attribute.KeyValue {
	if actor == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("user.id", actor.ID.String()),
		attribute.String("user.role", actor.Role.String()),
	}
}

// finishSpan marks span failed when err is set, then ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func notFound(id ulid.ULID) error {
	return oops.Code("COURSE_NOT_FOUND").With("course_id", id.String()).Wrap(ErrNotFound)
}

func alreadyEnrolled(courseID ulid.ULID) error {
	return oops.Code("ALREADY_ENROLLED").With("course_id", courseID.String()).Wrap(ErrAlreadyEnrolled)
}
