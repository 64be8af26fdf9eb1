// Package cmd implements the reqsched cobra CLI: one binary, one
// subcommand per process role (serve, worker, cron, migrate,
// bootstrap-admin, config, doctor), following the teacher's own
// cmd-package-plus-root-command layout.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var configPath string

// shutdownGrace bounds how long serve waits for in-flight HTTP requests
// to finish after a SIGTERM before forcing a shutdown. worker and cron do
// not use it.
const shutdownGrace = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "reqsched",
	Short: "Multi-tenant scheduled HTTP task runner",
}

// Execute runs the CLI; cmd/reqsched/main.go's only job is to call this.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML file (env vars always win)")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(bootstrapAdminCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
}

// resolveConfigPath returns the --config flag value, or the
// REQSCHED_CONFIG env var, or "" (no file — defaults plus env only).
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("REQSCHED_CONFIG")
}
