// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/coursebook/coursebook/internal/access"
	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/config"
	"github.com/coursebook/coursebook/internal/course"
	"github.com/coursebook/coursebook/internal/logging"
	"github.com/coursebook/coursebook/internal/observability"
	"github.com/coursebook/coursebook/internal/store"
	"github.com/coursebook/coursebook/internal/web"
)

const (
	serviceName     = "coursebook"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the Coursebook web server. Configuration is read from the
--config file, a .env file, COURSEBOOK_* environment variables and flags,
in increasing order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the server until a signal arrives, ctx ends or a
// server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.applyDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	logger.Info("starting coursebook",
		"addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"database", cfg.Redacted().Database.URL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	retry := store.DefaultRetryConfig
	retry.Attempts = cfg.Database.ConnectRetries
	db, repos, err := deps.DatabaseFactory(ctx, cfg.Database.URL, retry, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, observability.PingCheck(db), logger)
		obsErrs, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", logger)
		metrics = obsServer.Metrics()
	}
	defer func() {
		if obsServer == nil {
			return
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}()

	handler, sessions, err := buildApp(cfg, repos, metrics, logger)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("WEB_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	webErrs := make(chan error, 1)
	go func() {
		defer close(webErrs)
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			webErrs <- err
		}
	}()

	go sessions.RunSweeper(ctx, cfg.Session.SweepInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Coursebook listening on " + listener.Addr().String())
	logger.Info("web server ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-webErrs:
		runErr = oops.Code("WEB_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping web server", "error", err)
	}
	logger.Info("shutdown complete")
	return runErr
}

// buildApp wires the services and returns the web handler and the session
// manager, whose sweeper the caller runs.
func buildApp(cfg *config.Config, repos *Repositories, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, *auth.SessionManager, error) {
	sessions, err := auth.NewSessionManager(repos.Sessions, auth.SessionConfig{
		ShortTTL: cfg.Session.ShortTTL,
		LongTTL:  cfg.Session.LongTTL,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	hasher := auth.NewArgon2idHasherWithParams(cfg.HasherParams())
	authSvc, err := auth.NewService(repos.Users, sessions, hasher, logger)
	if err != nil {
		return nil, nil, err
	}

	gate := access.NewGate(logger)
	courseSvc, err := course.NewService(repos.Courses, repos.Enrollments, gate, logger)
	if err != nil {
		return nil, nil, err
	}

	srv, err := web.NewServer(web.Config{
		SecretKey:    []byte(cfg.SecretKey),
		CookieSecure: cfg.HTTP.CookieSecure,
		RateLimit:    cfg.HTTP.RateLimit,
	}, web.Deps{
		Auth:    authSvc,
		Courses: courseSvc,
		Gate:    gate,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv.Handler(), sessions, nil
}

// autoMigrate applies pending migrations before serving.
func autoMigrate(url string, factory func(string) (Migrator, error), logger *slog.Logger) error {
	m, err := factory(url)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("error closing migrator", "error", err)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	status, err := m.Status()
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "read migration status").Wrap(err)
	}
	logger.Info("database schema up to date", "version", status.Version)
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error.
// It exits when an error is received, the channel is closed or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
