package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlbx/reqsched/internal/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back Postgres schema migrations (managed mode only)",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfigOrExit()
			if cfg.Database.PostgresDSN == "" {
				fmt.Fprintln(os.Stderr, "Error: migrate requires PG_URL/POSTGRES_URL/DB_URL (standalone/sqlite mode has no migrations)")
				os.Exit(1)
			}
			if err := migrations.Up(cfg.Database.PostgresDSN); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Println("Migrations applied.")
		},
	}
}

func migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back every applied migration (development reset only)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfigOrExit()
			if cfg.Database.PostgresDSN == "" {
				fmt.Fprintln(os.Stderr, "Error: migrate requires PG_URL/POSTGRES_URL/DB_URL")
				os.Exit(1)
			}
			if err := migrations.Down(cfg.Database.PostgresDSN); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Println("Migrations rolled back.")
		},
	}
}
