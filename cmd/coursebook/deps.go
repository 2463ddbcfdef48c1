// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/coursebook/coursebook/internal/auth"
	authpostgres "github.com/coursebook/coursebook/internal/auth/postgres"
	"github.com/coursebook/coursebook/internal/course"
	coursepostgres "github.com/coursebook/coursebook/internal/course/postgres"
	"github.com/coursebook/coursebook/internal/observability"
	"github.com/coursebook/coursebook/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory connects to the database and builds the repositories.
	// Default: store.NewPool with the PostgreSQL repositories
	DatabaseFactory func(ctx context.Context, url string, retry store.RetryConfig, logger *slog.Logger) (Database, *Repositories, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the web listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)
}

// Database is the connection handle serve holds open.
type Database interface {
	Ping(ctx context.Context) error
	Close()
}

// Repositories are the storage implementations behind the services.
type Repositories struct {
	Users       auth.UserRepository
	Sessions    auth.SessionRepository
	Courses     course.CourseRepository
	Enrollments course.EnrollmentRepository
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Status() (*store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) applyDefaults() {
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = connectPostgres
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = newStoreMigrator
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, checker, logger)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
}

func (d *MigrateDeps) applyDefaults() {
	if d.MigratorFactory == nil {
		d.MigratorFactory = newStoreMigrator
	}
}

func newStoreMigrator(url string) (Migrator, error) {
	return store.NewMigrator(url)
}

func connectPostgres(ctx context.Context, url string, retry store.RetryConfig, logger *slog.Logger) (Database, *Repositories, error) {
	pool, err := store.NewPool(ctx, url, retry, logger)
	if err != nil {
		return nil, nil, err
	}
	return pool, &Repositories{
		Users:       authpostgres.NewUserRepository(pool),
		Sessions:    authpostgres.NewSessionRepository(pool),
		Courses:     coursepostgres.NewCourseRepository(pool),
		Enrollments: coursepostgres.NewEnrollmentRepository(pool),
	}, nil
}
