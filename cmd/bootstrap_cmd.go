package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlbx/reqsched/internal/auth"
	"github.com/nlbx/reqsched/internal/store"
)

func bootstrapAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first user account from the configured admin credentials",
		Run: func(cmd *cobra.Command, args []string) {
			runBootstrapAdmin()
		},
	}
}

func runBootstrapAdmin() {
	cfg := loadConfigOrExit()
	if cfg.Admin.Name == "" || cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		fmt.Fprintln(os.Stderr, "Error: ADMIN_NAME, ADMIN_EMAIL and ADMIN_PASSWORD (or admin: in the config file) must all be set")
		os.Exit(1)
	}

	db, err := openStores(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if existing, err := db.Users.GetByName(ctx, cfg.Admin.Name); err == nil && existing != nil {
		fmt.Printf("Admin user %q already exists (id %s); nothing to do.\n", existing.Name, existing.ID)
		return
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %s\n", err)
		os.Exit(1)
	}
	u := &store.User{
		Name:         cfg.Admin.Name,
		Email:        cfg.Admin.Email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := db.Users.Insert(ctx, u); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating admin user: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created admin user %q (id %s).\n", u.Name, u.ID)
}
