// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package web

import (
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/auth/authtest"
	"github.com/coursebook/coursebook/internal/course"
	"github.com/coursebook/coursebook/internal/course/coursetest"
	"github.com/coursebook/coursebook/internal/observability"
)

const testPassword = "correct horse battery"

type fixture struct {
	t        *testing.T
	web      *Server
	srv      *httptest.Server
	users    *authtest.UserStore
	sessions *authtest.SessionStore
	courses  *coursetest.Store
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		t:        t,
		users:    authtest.NewUserStore(),
		sessions: authtest.NewSessionStore(),
		courses:  coursetest.NewStore(),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	}
	mgr, err := auth.NewSessionManager(f.sessions, auth.SessionConfig{}, logger)
	require.NoError(t, err)
	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1})
	authSvc, err := auth.NewService(f.users, mgr, hasher, logger)
	require.NoError(t, err)
	gate := access.NewGate(logger)
	courseSvc, err := course.NewService(f.courses.Courses(), f.courses.Enrollments(), gate, logger)
	require.NoError(t, err)

	cfg := Config{SecretKey: []byte("test-secret-key-0123456789"), RateLimit: 100}
	for _, m := range mutate {
		m(&cfg)
	}
	f.web, err = NewServer(cfg, Deps{
		Auth:    authSvc,
		Courses: courseSvc,
		Gate:    gate,
		Metrics: f.metrics,
		Logger:  logger,
	})
	require.NoError(t, err)

	f.srv = httptest.NewServer(f.web.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

// client is a browser-like HTTP client with its own cookie jar. Redirects are
// returned, not followed.
type client struct {
	f    *fixture
	http *http.Client
}

func (f *fixture) newClient() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(f.t, err)
	return &client{f: f, http: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type response struct {
	status   int
	location string
	body     string
	cookies  []*http.Cookie
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (c *client) do(req *http.Request) response {
	c.f.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.f.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.f.t, err)
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     string(body),
		cookies:  resp.Cookies(),
	}
}

func (c *client) get(path string) response {
	c.f.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.f.srv.URL+path, nil)
	require.NoError(c.f.t, err)
	return c.do(req)
}

// post submits form with a valid CSRF token.
func (c *client) post(path string, form url.Values) response {
	c.f.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(csrfFieldName, c.csrfToken())
	return c.postRaw(path, form)
}

func (c *client) postRaw(path string, form url.Values) response {
	c.f.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.f.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.f.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

var csrfFieldPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// csrfToken reads the hidden token from a form page, the way a browser
// submits it. Signed-in clients are bounced from /login, so /profile is used.
func (c *client) csrfToken() string {
	c.f.t.Helper()
	page := c.get("/login")
	if page.status == http.StatusSeeOther {
		page = c.get("/profile")
	}
	m := csrfFieldPattern.FindStringSubmatch(page.body)
	require.Len(c.f.t, m, 2, "no csrf field rendered")
	return html.UnescapeString(m[1])
}

func (c *client) register(email, name, role string) response {
	c.f.t.Helper()
	return c.post("/register", url.Values{
		"email":    {email},
		"name":     {name},
		"password": {testPassword},
		"confirm":  {testPassword},
		"role":     {role},
	})
}

func (c *client) login(email string, remember bool) response {
	c.f.t.Helper()
	form := url.Values{"email": {email}, "password": {testPassword}}
	if remember {
		form.Set("remember", "1")
	}
	return c.post("/login", form)
}

// signedIn registers and logs in a fresh client.
func (f *fixture) signedIn(email, name, role string) *client {
	f.t.Helper()
	c := f.newClient()
	require.Equal(f.t, http.StatusSeeOther, c.register(email, name, role).status)
	resp := c.login(email, false)
	require.Equal(f.t, http.StatusSeeOther, resp.status)
	require.Equal(f.t, "/dashboard", resp.location)
	return c
}
