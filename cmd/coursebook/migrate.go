// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/coursebook/coursebook/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	deps.applyDefaults()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply or inspect the PostgreSQL schema migrations embedded in the
binary. Rolling back is done by hand with the *.down.sql files.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printStatus(cmd, m)
			})
		},
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator and runs fn.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	url := cfg.Database.URL
	if flagURL, _ := cmd.Flags().GetString("database-url"); flagURL != "" { //nolint:errcheck // flag is registered above
		url = flagURL
	}
	if url == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (--database-url, DATABASE_URL or COURSEBOOK_DATABASE_URL)")
	}

	m, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrln("warning: closing migrator:", closeErr)
		}
	}()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}

	name, err := store.MigrationName(status.Version)
	if err != nil {
		return err
	}
	current := "none"
	if status.Version > 0 {
		current = fmt.Sprintf("%d", status.Version)
		if name != "" {
			current += " (" + name + ")"
		}
	}
	cmd.Printf("Current version: %s\n", current)
	if status.Dirty {
		cmd.Println("Database is DIRTY: fix the failed migration by hand and clear the dirty flag in schema_migrations")
	}
	if len(status.Pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Printf("Pending migrations: %d\n", len(status.Pending))
	for _, v := range status.Pending {
		pendingName, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		cmd.Printf("  %s\n", pendingName)
	}
	return nil
}
