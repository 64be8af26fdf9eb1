package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nlbx/reqsched/internal/engine"
	"github.com/nlbx/reqsched/internal/httpclient"
	"github.com/nlbx/reqsched/internal/queue"
)

func workerCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the dispatch queue (C2 + C5)",
		Run: func(cmd *cobra.Command, args []string) {
			runWorker(concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of worker goroutines (defaults to WORKER_COUNT)")
	return cmd
}

func runWorker(concurrency int) {
	cfg := loadConfigOrExit()
	if concurrency <= 0 {
		concurrency = cfg.WorkerCount
	}

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
	eng := engine.NewEngine(db.Tasks, db.Users, db.ApiKeys, queue.New(rdb), rdb, httpClient, "worker-"+hostname)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go eng.RunPromoter(ctx, 500*time.Millisecond)

	slog.Info("worker: starting", "concurrency", concurrency)
	eng.RunWorker(ctx, concurrency)
	slog.Info("worker: stopped")
}
