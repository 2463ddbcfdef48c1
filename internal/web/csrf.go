// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"crypto/sha256"
	"io"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

const (
	csrfCookieName = "coursebook_csrf"
	csrfFieldName  = "csrf_token"
)

// deriveKey expands the configured secret into a 32-byte key for one purpose,
// so the flash and CSRF cookies never share a signing key.
func deriveKey(secret []byte, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, oops.Code("WEB_KEY_DERIVATION_FAILED").With("purpose", purpose).Wrap(err)
	}
	return key, nil
}

// newCSRF builds the double-submit token middleware. The masked token for the
// request is copied into the request state for the templates.
func (s *Server) newCSRF(key []byte) func(http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(csrfFieldName),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.Secure(s.cfg.CookieSecure),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
	)

	return func(next http.Handler) http.Handler {
		checked := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stateFrom(r.Context()).csrfToken = csrf.Token(r)
			next.ServeHTTP(w, r)
		}))
		if s.cfg.CookieSecure {
			return checked
		}
		// Without TLS there is no trustworthy Referer to check.
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checked.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "csrf check failed",
		"path", r.URL.Path,
		"reason", csrf.FailureReason(r))
	s.renderError(w, r, http.StatusForbidden, "The form has expired. Please go back, reload the page and try again.")
}
