// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/pkg/errutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames are the templates rendered on top of base.html.
var pageNames = []string{
	"index", "feedback", "register", "login", "dashboard", "profile",
	"courses", "course_detail", "edit_course", "new_course", "error",
}

type views struct {
	pages map[string]*template.Template
}

func parseViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("TEMPLATE_PARSE_FAILED").With("page", name).Wrap(err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// pageData is what every template receives.
type pageData struct {
	Title     string
	User      *auth.User
	Flashes   []Flash
	CSRFToken string
	Page      any
}

// render executes page into a buffer and writes it with status. Pending
// notices are consumed.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, page any) {
	t, ok := s.views.pages[name]
	if !ok {
		s.serverError(w, r, oops.Code("TEMPLATE_MISSING").With("page", name).Errorf("no template %q", name))
		return
	}

	st := stateFrom(r.Context())
	data := pageData{
		Title:     title,
		Flashes:   s.takeFlashes(w, r),
		CSRFToken: st.csrfToken,
		User:      st.user,
		Page:      page,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		errutil.LogError(r.Context(), s.logger, "render template",
			oops.Code("TEMPLATE_EXEC_FAILED").With("page", name).Wrap(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w) //nolint:errcheck // client went away
}

type errorPage struct {
	Status  int
	Heading string
	Message string
}

// renderError writes the error page for status.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error", http.StatusText(status), errorPage{
		Status:  status,
		Heading: http.StatusText(status),
		Message: message,
	})
}

// serverError logs err and shows a generic 500 page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	errutil.LogError(r.Context(), s.logger, "request failed",
		oops.With("path", r.URL.Path).With("method", r.Method).Wrap(err))
	s.renderError(w, r, http.StatusInternalServerError, "Something went wrong on our side. Please try again later.")
}

// userMessage extracts the human-readable part of a validation error that
// wraps sentinel.
func userMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed, ok := strings.CutSuffix(msg, ": "+sentinel.Error()); ok && trimmed != "" {
		msg = trimmed
	}
	if errors.Is(err, sentinel) && msg == sentinel.Error() {
		return "Please check the form and try again."
	}
	if msg != "" {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	return msg
}
