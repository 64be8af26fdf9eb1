package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nlbx/reqsched/internal/engine"
	"github.com/nlbx/reqsched/internal/httpclient"
	"github.com/nlbx/reqsched/internal/queue"
)

func cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run the cron registry poll loop (C3)",
		Run: func(cmd *cobra.Command, args []string) {
			runCron()
		},
	}
}

// runCron starts the single-owner leader election and fire loop
// (internal/cron.Registry.Start). Running more than one `cron` process
// against the same Redis instance is safe — only the lock holder fires
// jobs — but only one process needs to.
func runCron() {
	cfg := loadConfigOrExit()

	db, err := openStores(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := openRedis(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer rdb.Close()

	httpClient := httpclient.New(cfg.HTTPClientTimeout)
	if w := startConfigWatcher(httpClient); w != nil {
		defer w.Stop()
	}
	hostname, _ := os.Hostname()
	eng := engine.NewEngine(db.Tasks, db.Users, db.ApiKeys, queue.New(rdb), rdb, httpClient, "cron-"+hostname)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("cron: starting poll loop", "owner", "cron-"+hostname)
	eng.Cron.Start(ctx)
	<-ctx.Done()
	eng.Cron.Stop()
	slog.Info("cron: stopped")
}
