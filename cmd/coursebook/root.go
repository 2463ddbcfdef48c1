// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coursebook/coursebook/internal/config"
	"github.com/coursebook/coursebook/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the Coursebook CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coursebook",
		Short: "Coursebook - course enrollment web application",
		Long: `Coursebook lets students register, log in and enroll in courses,
and lets tutors publish and edit them. Data lives in PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/coursebook/config.yaml if present)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file path (default: .env)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads configuration from the global file flags, the environment
// and flags. It does not validate. Without --config, an existing
// $XDG_CONFIG_HOME/coursebook/config.yaml is used.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	file := configFile
	if file == "" {
		var err error
		if file, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.LoadOptions{
		File:    file,
		EnvFile: envFile,
		Flags:   flags,
	})
}
