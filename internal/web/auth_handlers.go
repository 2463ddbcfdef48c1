// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/observability"
)

type registerForm struct {
	Role string
}

type loginForm struct {
	Next string
}

func loginURL(next string) string {
	if next == "" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := CurrentUser(r.Context()); ok {
		s.redirect(w, r, "/dashboard")
		return
	}
	s.render(w, r, http.StatusOK, "register", "Register", registerForm{Role: string(auth.RoleStudent)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	password := r.PostFormValue("password")

	if password != r.PostFormValue("confirm") {
		s.metrics.RecordAuthEvent(observability.EventRegister, observability.ResultFailure)
		s.flash(r, FlashDanger, "Passwords must match")
		s.redirect(w, r, "/register")
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:       r.PostFormValue("email"),
		DisplayName: r.PostFormValue("name"),
		Password:    password,
		Role:        r.PostFormValue("role"),
	})
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateEmail):
		s.metrics.RecordAuthEvent(observability.EventRegister, observability.ResultFailure)
		s.flash(r, FlashDanger, "Email already exists")
		s.redirect(w, r, "/register")
		return
	case errors.Is(err, auth.ErrInvalidInput):
		s.metrics.RecordAuthEvent(observability.EventRegister, observability.ResultFailure)
		s.flash(r, FlashDanger, userMessage(err, auth.ErrInvalidInput))
		s.redirect(w, r, "/register")
		return
	default:
		s.serverError(w, r, err)
		return
	}

	s.metrics.RecordAuthEvent(observability.EventRegister, observability.ResultSuccess)
	s.logger.InfoContext(r.Context(), "user registered",
		"user_id", user.ID.String(),
		"role", user.Role.String())
	s.flash(r, FlashSuccess, "Registration successful")
	s.redirect(w, r, "/login")
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"), "")
	if _, ok := CurrentUser(r.Context()); ok {
		s.redirect(w, r, safeNext(next, "/dashboard"))
		return
	}
	s.render(w, r, http.StatusOK, "login", "Login", loginForm{Next: next})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.PostFormValue("next"), "")

	result, err := s.auth.Login(r.Context(), auth.LoginInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Remember: r.PostFormValue("remember") != "",
		Client: auth.ClientInfo{
			UserAgent: r.UserAgent(),
			IPAddress: r.RemoteAddr,
		},
	})
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.metrics.RecordAuthEvent(observability.EventLogin, observability.ResultFailure)
		s.logger.InfoContext(r.Context(), "login failed", "remote_addr", r.RemoteAddr)
		s.flash(r, FlashDanger, "Please check your login details and try again.")
		s.redirect(w, r, loginURL(next))
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	// A session the browser already had is replaced, not reused.
	if st := stateFrom(r.Context()); st.token != "" {
		if err := s.auth.Logout(r.Context(), st.token); err != nil {
			s.logger.WarnContext(r.Context(), "revoke previous session", "error", err)
		}
	}

	s.metrics.RecordAuthEvent(observability.EventLogin, observability.ResultSuccess)
	s.logger.InfoContext(r.Context(), "user logged in",
		"user_id", result.User.ID.String(),
		"session_id", result.Session.ID.String(),
		"remember", result.Session.Remember)
	http.SetCookie(w, s.sessionCookie(result.Token, result.Session))
	s.redirect(w, r, safeNext(next, "/dashboard"))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	if err := s.auth.Logout(r.Context(), st.token); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.metrics.RecordAuthEvent(observability.EventLogout, observability.ResultSuccess)
	s.logger.InfoContext(r.Context(), "user logged out", "user_id", st.user.ID.String())

	st.user, st.session, st.token = nil, nil, ""
	http.SetCookie(w, s.expiredCookie(SessionCookieName))
	s.flash(r, FlashSuccess, "You have been logged out")
	s.redirect(w, r, "/login")
}
