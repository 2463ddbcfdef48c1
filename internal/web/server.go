// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package web serves the Coursebook HTML interface: registration, login,
// the dashboard, profile editing and course pages.
package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/course"
	"github.com/coursebook/coursebook/internal/observability"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "coursebook_session"

// Config holds the web settings.
type Config struct {
	// SecretKey signs flash and CSRF cookies.
	SecretKey []byte
	// CookieSecure marks cookies Secure; enable behind HTTPS.
	CookieSecure bool
	// RateLimit is login/register POSTs per client IP per minute. Zero disables it.
	RateLimit int
}

// Deps are the services the handlers call.
type Deps struct {
	Auth    *auth.Service
	Courses *course.Service
	Gate    *access.Gate
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server holds the handlers and their collaborators.
type Server struct {
	cfg     Config
	auth    *auth.Service
	courses *course.Service
	gate    *access.Gate
	metrics *observability.Metrics
	logger  *slog.Logger
	views   *views
	flashes flashCodec
	csrf    func(http.Handler) http.Handler
}

// NewServer validates cfg and deps and parses the templates.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, oops.Code("WEB_CONFIG_INVALID").Errorf("secret key is required")
	}
	if deps.Auth == nil || deps.Courses == nil || deps.Gate == nil {
		return nil, oops.Code("WEB_CONFIG_INVALID").Errorf("auth service, course service and gate are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	v, err := parseViews()
	if err != nil {
		return nil, err
	}
	flashKey, err := deriveKey(cfg.SecretKey, "coursebook flash")
	if err != nil {
		return nil, err
	}
	csrfKey, err := deriveKey(cfg.SecretKey, "coursebook csrf")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		auth:    deps.Auth,
		courses: deps.Courses,
		gate:    deps.Gate,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		views:   v,
		flashes: newFlashCodec(flashKey),
	}
	s.csrf = s.newCSRF(csrfKey)
	return s, nil
}

// Handler returns the routed, traced HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	r.Use(s.loadSession)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusMethodNotAllowed, "That action is not supported here.")
	})

	r.Group(func(r chi.Router) {
		r.Use(s.csrf)
		r.Get("/", s.handleIndex)
		r.Get("/feedback", s.handleFeedback)

		r.Group(func(r chi.Router) {
			r.Use(s.limitCredentialPosts)
			r.Get("/register", s.handleRegisterForm)
			r.Post("/register", s.handleRegister)
			r.Get("/login", s.handleLoginForm)
			r.Post("/login", s.handleLogin)
		})
	})

	// Anonymous visitors are sent to the login page before any token check.
	r.Group(func(r chi.Router) {
		r.Use(s.requireLogin)
		r.Use(s.csrf)
		r.Get("/logout", s.handleLogout)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/profile", s.handleProfile)
		r.Post("/profile", s.handleUpdateProfile)
		r.Get("/courses", s.handleCourseList)
		r.Get("/courses/new", s.handleNewCourseForm)
		r.Post("/courses/new", s.handleCreateCourse)
		r.Get("/courses/{id}", s.handleCourseDetail)
		r.Get("/courses/{id}/edit", s.handleEditCourseForm)
		r.Post("/courses/{id}/edit", s.handleUpdateCourse)
		r.Get("/enroll/{id}", s.handleEnroll)
	})

	return otelhttp.NewHandler(r, "coursebook.web")
}

// redirect stores pending notices and sends a 303 to target.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	s.persistFlashes(w, r)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) sessionCookie(token string, session *auth.Session) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if session.Remember {
		c.Expires = session.ExpiresAt
		c.MaxAge = int(s.auth.Sessions().LongTTL().Seconds())
	}
	return c
}

func (s *Server) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
