// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/course"
)

type dashboardPage struct {
	Users       []*auth.User
	Enrollments []*course.EnrolledCourse
	CanCreate   bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index", "Welcome", nil)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "feedback", "Feedback", nil)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	enrollments, err := s.courses.EnrollmentsFor(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard", "Dashboard", dashboardPage{
		Users:       users,
		Enrollments: enrollments,
		CanCreate:   s.gate.Decide(user, access.ActionCourseCreate) == access.Allowed,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "profile", "Profile", nil)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())

	updated, err := s.auth.UpdateDisplayName(r.Context(), st.user.ID, r.PostFormValue("name"))
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidInput):
		s.flash(r, FlashDanger, userMessage(err, auth.ErrInvalidInput))
		s.redirect(w, r, "/profile")
		return
	default:
		s.serverError(w, r, err)
		return
	}

	st.user = updated
	s.flash(r, FlashSuccess, "Profile updated successfully")
	s.redirect(w, r, "/profile")
}
