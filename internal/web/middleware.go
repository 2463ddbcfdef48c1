// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/observability"
)

// instrument records request count and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, status, time.Since(start))
	})
}

// recoverer turns a handler panic into the 500 page.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = oops.Errorf("panic: %v", rec)
			}
			s.serverError(w, r, oops.Code("HANDLER_PANIC").With("path", r.URL.Path).Wrap(err))
		}()
		next.ServeHTTP(w, r)
	})
}

// loadSession resolves the session cookie and pending notices into the
// request state. Stale session cookies are cleared.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := &requestState{}
		if c, err := r.Cookie(flashCookieName); err == nil {
			st.flashCookie = true
			st.flashes = s.flashes.decode(c.Value)
		}
		r = r.WithContext(withState(r.Context(), st))

		c, err := r.Cookie(SessionCookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, session, err := s.auth.Authenticate(r.Context(), c.Value)
		switch {
		case err == nil:
			st.user, st.session, st.token = user, session, c.Value
		case errors.Is(err, auth.ErrNoSession),
			errors.Is(err, auth.ErrSessionExpired),
			errors.Is(err, auth.ErrSessionRevoked):
			s.metrics.RecordAuthEvent(observability.EventSession, observability.ResultFailure)
			http.SetCookie(w, s.expiredCookie(SessionCookieName))
		default:
			s.serverError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireLogin sends anonymous visitors to the login page.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		s.flash(r, FlashInfo, "Please log in to access this page.")
		target := "/login"
		if r.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		s.redirect(w, r, target)
	})
}

// limitCredentialPosts rate limits login and register submissions per client IP.
func (s *Server) limitCredentialPosts(next http.Handler) http.Handler {
	if s.cfg.RateLimit <= 0 {
		return next
	}
	limited := httprate.Limit(
		s.cfg.RateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.logger.WarnContext(r.Context(), "credential rate limit exceeded", "path", r.URL.Path)
			s.renderError(w, r, http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.")
		}),
	)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// safeNext returns next if it is a local path, else fallback.
func safeNext(next, fallback string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
