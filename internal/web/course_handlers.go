// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/course"
	"github.com/coursebook/coursebook/internal/observability"
)

const noPermissionMessage = "You do not have permission to access this page"

type courseListPage struct {
	Courses   []*course.Course
	CanCreate bool
}

type courseDetailPage struct {
	Course      *course.Course
	Enrollments int
	CanEdit     bool
	CanEnroll   bool
}

type courseFormPage struct {
	Course *course.Course
	Input  course.Input
}

func (s *Server) handleCourseList(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "courses", "Courses", courseListPage{
		Courses:   courses,
		CanCreate: s.gate.Decide(user, access.ActionCourseCreate) == access.Allowed,
	})
}

func (s *Server) handleCourseDetail(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	n, err := s.courses.CountEnrollments(r.Context(), c.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	user, _ := CurrentUser(r.Context())
	s.render(w, r, http.StatusOK, "course_detail", c.Title, courseDetailPage{
		Course:      c,
		Enrollments: n,
		CanEdit:     s.gate.Decide(user, access.EditAction(c.ID.String())) == access.Allowed,
		CanEnroll:   s.gate.Decide(user, access.EnrollAction(c.ID.String())) == access.Allowed,
	})
}

func (s *Server) handleNewCourseForm(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(w, r, access.ActionCourseCreate) {
		return
	}
	s.render(w, r, http.StatusOK, "new_course", "New Course", courseFormPage{})
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	_, err := s.courses.Create(r.Context(), user, courseInput(r))
	switch {
	case err == nil:
	case errors.Is(err, access.ErrPermissionDenied):
		s.denied(w, r, noPermissionMessage)
		return
	case errors.Is(err, course.ErrInvalidInput):
		s.flash(r, FlashDanger, userMessage(err, course.ErrInvalidInput))
		s.redirect(w, r, "/courses/new")
		return
	default:
		s.serverError(w, r, err)
		return
	}
	s.flash(r, FlashSuccess, "New course added successfully")
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleEditCourseForm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.courseID(w, r)
	if !ok {
		return
	}
	if !s.allowed(w, r, access.EditAction(id.String())) {
		return
	}
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "edit_course", "Edit Course", courseFormPage{
		Course: c,
		Input:  course.Input{Title: c.Title, Category: c.Category},
	})
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := s.courseID(w, r)
	if !ok {
		return
	}
	user, _ := CurrentUser(r.Context())
	_, err := s.courses.Update(r.Context(), user, id, courseInput(r))
	switch {
	case err == nil:
	case errors.Is(err, access.ErrPermissionDenied):
		s.denied(w, r, noPermissionMessage)
		return
	case errors.Is(err, course.ErrNotFound):
		s.courseNotFound(w, r)
		return
	case errors.Is(err, course.ErrInvalidInput):
		s.flash(r, FlashDanger, userMessage(err, course.ErrInvalidInput))
		s.redirect(w, r, "/courses/"+id.String()+"/edit")
		return
	default:
		s.serverError(w, r, err)
		return
	}
	s.flash(r, FlashSuccess, "Course updated successfully")
	s.redirect(w, r, "/courses/"+id.String())
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	id, ok := s.courseID(w, r)
	if !ok {
		return
	}
	user, _ := CurrentUser(r.Context())
	_, err := s.courses.Enroll(r.Context(), user, id)
	switch {
	case err == nil:
	case errors.Is(err, access.ErrPermissionDenied):
		s.denied(w, r, "Only students can enroll in courses")
		return
	case errors.Is(err, course.ErrNotFound):
		s.courseNotFound(w, r)
		return
	case errors.Is(err, course.ErrAlreadyEnrolled):
		s.flash(r, FlashInfo, "You are already enrolled in this course")
		s.redirect(w, r, "/dashboard")
		return
	default:
		s.serverError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "user enrolled",
		"user_id", user.ID.String(),
		"course_id", id.String())
	s.flash(r, FlashSuccess, "Enrolled in course successfully")
	s.redirect(w, r, "/dashboard")
}

func courseInput(r *http.Request) course.Input {
	return course.Input{
		Title:    r.PostFormValue("title"),
		Category: r.PostFormValue("category"),
	}
}

// courseID parses the {id} URL parameter. A malformed ID is reported the same
// as a missing course.
func (s *Server) courseID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	id, err := ulid.ParseStrict(chi.URLParam(r, "id"))
	if err != nil {
		s.courseNotFound(w, r)
		return ulid.ULID{}, false
	}
	return id, true
}

func (s *Server) loadCourse(w http.ResponseWriter, r *http.Request) (*course.Course, bool) {
	id, ok := s.courseID(w, r)
	if !ok {
		return nil, false
	}
	c, err := s.courses.Get(r.Context(), id)
	if errors.Is(err, course.ErrNotFound) {
		s.courseNotFound(w, r)
		return nil, false
	}
	if err != nil {
		s.serverError(w, r, err)
		return nil, false
	}
	return c, true
}

func (s *Server) courseNotFound(w http.ResponseWriter, r *http.Request) {
	s.flash(r, FlashDanger, "Course not found")
	s.redirect(w, r, "/courses")
}

// allowed checks action for the current user and redirects on denial.
func (s *Server) allowed(w http.ResponseWriter, r *http.Request, action string) bool {
	user, _ := CurrentUser(r.Context())
	if s.gate.Decide(user, action) == access.Allowed {
		return true
	}
	s.denied(w, r, noPermissionMessage)
	return false
}

func (s *Server) denied(w http.ResponseWriter, r *http.Request, message string) {
	s.metrics.RecordAuthEvent(observability.EventAuthorize, observability.ResultDenied)
	s.flash(r, FlashDanger, message)
	s.redirect(w, r, "/dashboard")
}
