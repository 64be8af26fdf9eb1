package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nlbx/reqsched/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("reqsched doctor")
	fmt.Printf("  OS:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:  %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	if cfgPath == "" {
		fmt.Println("  Config file: (none — using defaults and environment only)")
	} else {
		fmt.Printf("  Config file: %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	fmt.Printf("  Mode:        %s\n", cfg.Database.Mode)
	fmt.Printf("  Listen addr: %s\n", cfg.ListenAddr)
	fmt.Printf("  Timezone:    %s\n", cfg.Timezone)
	fmt.Println()

	fmt.Println("  Dependencies:")
	checkJWTSecret(cfg.JWTSecret)
	checkRedis(cfg)
	checkDatabase(cfg)
	fmt.Println()

	fmt.Println("  External tools:")
	checkBinary("psql")
	checkBinary("redis-cli")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkJWTSecret(secret string) {
	if secret == "" {
		fmt.Println("    JWT_SECRET:   NOT SET (required by `serve`)")
		return
	}
	fmt.Println("    JWT_SECRET:   configured")
}

func checkRedis(cfg *config.Config) {
	if cfg.Redis.URL == "" {
		fmt.Println("    Redis:        NOT CONFIGURED (REDIS_URL)")
		return
	}
	rdb, err := openRedis(cfg)
	if err != nil {
		fmt.Printf("    Redis:        %s (FAILED: %s)\n", cfg.Redis.URL, err)
		return
	}
	defer rdb.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("    Redis:        %s (UNREACHABLE: %s)\n", cfg.Redis.URL, err)
		return
	}
	fmt.Printf("    Redis:        %s (OK)\n", cfg.Redis.URL)
}

func checkDatabase(cfg *config.Config) {
	db, err := openStores(cfg)
	if err != nil {
		fmt.Printf("    Database:     %s mode (FAILED: %s)\n", cfg.Database.Mode, err)
		return
	}
	defer db.Close()
	fmt.Printf("    Database:     %s mode (OK)\n", cfg.Database.Mode)
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND (optional)\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}
