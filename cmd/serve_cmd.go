package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nlbx/reqsched/internal/admission"
	"github.com/nlbx/reqsched/internal/auth"
	"github.com/nlbx/reqsched/internal/engine"
	"github.com/nlbx/reqsched/internal/httpapi"
	"github.com/nlbx/reqsched/internal/httpclient"
	"github.com/nlbx/reqsched/internal/queue"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admission HTTP API (C6)",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfg := loadConfigOrExit()
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT_SECRET is not configured")
		os.Exit(1)
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
	eng := engine.NewEngine(db.Tasks, db.Users, db.ApiKeys, queue.New(rdb), rdb, httpClient, "serve-"+hostname)

	adm := admission.New(db.Tasks, eng.Queue, eng.Cron)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, 0)
	srv := httpapi.NewServer(adm, db.Users, db.ApiKeys, issuer)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.NewRouter()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("serve: listening", "addr", cfg.ListenAddr, "mode", cfg.Database.Mode)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
