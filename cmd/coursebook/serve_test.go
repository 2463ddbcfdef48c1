// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebook/coursebook/internal/auth/authtest"
	"github.com/coursebook/coursebook/internal/config"
	"github.com/coursebook/coursebook/internal/course/coursetest"
	"github.com/coursebook/coursebook/internal/observability"
	"github.com/coursebook/coursebook/internal/store"
	"github.com/coursebook/coursebook/pkg/errutil"
)

type fakeDatabase struct {
	mu      sync.Mutex
	closed  bool
	pingErr error
}

func (d *fakeDatabase) Ping(context.Context) error { return d.pingErr }

func (d *fakeDatabase) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *fakeDatabase) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeMigrator struct {
	upCalls int
	status  store.Status
	closed  bool
	upErr   error
}

func (m *fakeMigrator) Up() error {
	m.upCalls++
	return m.upErr
}
func (m *fakeMigrator) Status() (*store.Status, error) {
	s := m.status
	return &s, nil
}
func (m *fakeMigrator) Close() error { m.closed = true; return nil }

type fakeObservabilityServer struct {
	startErr error
	stopped  bool
	metrics  *observability.Metrics
	checker  observability.ReadinessChecker
}

func (o *fakeObservabilityServer) Start() (<-chan error, error) {
	if o.startErr != nil {
		return nil, o.startErr
	}
	return make(chan error), nil
}
func (o *fakeObservabilityServer) Stop(context.Context) error { o.stopped = true; return nil }
func (o *fakeObservabilityServer) Addr() string { return "127.0.0.1:0" }
func (o *fakeObservabilityServer) Metrics() *observability.Metrics { return o.metrics }

func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.URL = "postgres://localhost/coursebook"
	cfg.SecretKey = "test-secret-key-0123456789"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Log.Level = "error"
	cfg.Hasher.Memory = 8 * 1024
	cfg.Hasher.Threads = 1
	return &cfg
}

type serveHarness struct {
	db       *fakeDatabase
	migrator *fakeMigrator
	obs      *fakeObservabilityServer
	deps     *ServeDeps
	listener chan net.Listener
}

func newServeHarness() *serveHarness {
	h := &serveHarness{
		db:       &fakeDatabase{},
		migrator: &fakeMigrator{status: store.Status{Version: 3}},
		obs:      &fakeObservabilityServer{},
		listener: make(chan net.Listener, 1),
	}
	h.deps = &ServeDeps{
		DatabaseFactory: func(context.Context, string, store.RetryConfig, *slog.Logger) (Database, *Repositories, error) {
			courses := coursetest.NewStore()
			return h.db, &Repositories{
				Users:       authtest.NewUserStore(),
				Sessions:    authtest.NewSessionStore(),
				Courses:     courses.Courses(),
				Enrollments: courses.Enrollments(),
			}, nil
		},
		MigratorFactory: func(string) (Migrator, error) { return h.migrator, nil },
		ObservabilityServerFactory: func(_ string, checker observability.ReadinessChecker, _ *slog.Logger) ObservabilityServer {
			h.obs.checker = checker
			return h.obs
		},
		ListenerFactory: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				h.listener <- l
			}
			return l, err
		},
	}
	return h
}

func quietCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd
}

func TestRunServe_ServesUntilCancelled(t *testing.T) {
	h := newServeHarness()
	cfg := validConfig()
	cfg.Database.AutoMigrate = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cfg, quietCmd(), h.deps) }()

	var l net.Listener
	select {
	case l = <-h.listener:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener never opened")
	}

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Coursebook")

	require.NotNil(t, h.obs.checker)
	assert.NoError(t, h.obs.checker(ctx))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
	assert.True(t, h.db.isClosed())
	assert.Equal(t, 1, h.migrator.upCalls)
	assert.True(t, h.migrator.closed)
	assert.True(t, h.obs.stopped)
}

func TestRunServe_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*serveHarness, *config.Config)
		wantCode string
	}{
		{
			name:     "invalid config",
			mutate:   func(_ *serveHarness, c *config.Config) { c.SecretKey = "short" },
			wantCode: "CONFIG_INVALID",
		},
		{
			name: "database unreachable",
			mutate: func(h *serveHarness, _ *config.Config) {
				h.deps.DatabaseFactory = func(context.Context, string, store.RetryConfig, *slog.Logger) (Database, *Repositories, error) {
					return nil, nil, errors.New("connection refused")
				}
			},
			wantCode: "DB_CONNECT_FAILED",
		},
		{
			name: "migration fails",
			mutate: func(h *serveHarness, c *config.Config) {
				c.Database.AutoMigrate = true
				h.migrator.upErr = errors.New("dirty database")
			},
			wantCode: "AUTO_MIGRATE_FAILED",
		},
		{
			name: "observability cannot start",
			mutate: func(h *serveHarness, _ *config.Config) {
				h.obs.startErr = errors.New("address in use")
			},
			wantCode: "OBSERVABILITY_START_FAILED",
		},
		{
			name: "web cannot listen",
			mutate: func(h *serveHarness, _ *config.Config) {
				h.deps.ListenerFactory = func(string, string) (net.Listener, error) {
					return nil, errors.New("address in use")
				}
			},
			wantCode: "WEB_LISTEN_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newServeHarness()
			cfg := validConfig()
			tt.mutate(h, cfg)

			err := runServeWithDeps(context.Background(), cfg, quietCmd(), h.deps)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestRunServe_MetricsDisabled(t *testing.T) {
	h := newServeHarness()
	cfg := validConfig()
	cfg.Metrics.Addr = ""
	h.deps.ObservabilityServerFactory = func(string, observability.ReadinessChecker, *slog.Logger) ObservabilityServer {
		t.Fatal("observability server must not be created")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cfg, quietCmd(), h.deps) }()
	<-h.listener
	cancel()
	require.NoError(t, <-done)
}

func TestMonitorServerErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		errCh <- errors.New("boom")
		monitorServerErrors(ctx, cancel, errCh, "test", logger)
		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)
		monitorServerErrors(ctx, cancel, errCh, "test", logger)
		assert.NoError(t, ctx.Err())
	})
}

func TestMigrateCommands(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/coursebook")

	run := func(m *fakeMigrator, args ...string) (string, error) {
		cmd := newMigrateCmdWithDeps(&MigrateDeps{
			MigratorFactory: func(url string) (Migrator, error) {
				assert.Equal(t, "postgres://localhost/coursebook", url)
				return m, nil
			},
		})
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return buf.String(), err
	}

	t.Run("up", func(t *testing.T) {
		m := &fakeMigrator{status: store.Status{Version: 3}}
		out, err := run(m, "up")
		require.NoError(t, err)
		assert.Equal(t, 1, m.upCalls)
		assert.True(t, m.closed)
		assert.Contains(t, out, "Current version: 3 (000003_courses)")
		assert.Contains(t, out, "No pending migrations")
	})

	t.Run("status lists pending", func(t *testing.T) {
		m := &fakeMigrator{status: store.Status{Version: 1, Pending: []uint{2, 3}}}
		out, err := run(m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Pending migrations: 2")
		assert.Contains(t, out, "000002_sessions")
	})

	t.Run("status on empty database", func(t *testing.T) {
		m := &fakeMigrator{status: store.Status{Pending: []uint{1, 2, 3}}}
		out, err := run(m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: none")
	})

	t.Run("dirty", func(t *testing.T) {
		m := &fakeMigrator{status: store.Status{Version: 2, Dirty: true}}
		out, err := run(m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "DIRTY")
	})

	t.Run("offers only up and status", func(t *testing.T) {
		var names []string
		for _, c := range newMigrateCmdWithDeps(nil).Commands() {
			names = append(names, c.Name())
		}
		assert.ElementsMatch(t, []string{"up", "status"}, names)
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		cmd := newMigrateCmdWithDeps(&MigrateDeps{
			MigratorFactory: func(url string) (Migrator, error) {
				assert.Equal(t, "postgres://other/db", url)
				return &fakeMigrator{}, nil
			},
		})
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"status", "--database-url", "postgres://other/db"})
		require.NoError(t, cmd.Execute())
	})
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "migrate", "status")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
