package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"emailguard/internal/config"
	"emailguard/internal/httpapi"
	"emailguard/internal/jobqueue"
	"emailguard/internal/ratelimit"
	"emailguard/internal/store"
	"emailguard/internal/workerpool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP verification API and bulk job worker",
	Long: `serve starts the HTTP API (spec.md §6.1), the Redis-backed bulk job
dispatcher, and its retry monitor, all sharing one Verifier and worker pool.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := newRedisClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}

	pg, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to Postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	limiter := buildLimiter(cfg, rdb)
	throttle := ratelimit.DefaultDomainThrottle()
	v, err := buildVerifier(cfg, limiter, throttle)
	if err != nil {
		return err
	}

	pool := workerpool.New(cfg.MaxWorkers, cfg.MaxWorkers*4)
	defer pool.Terminate()

	dispatcher := jobqueue.NewDispatcher(rdb, v, pool, pg)
	go dispatcher.Run(ctx)
	go dispatcher.RunRetryMonitor(ctx)

	server := httpapi.NewServer(v, dispatcher, pg, limiter, cfg.RateLimit, pool)
	return server.ListenAndServe(ctx, ":"+cfg.ServerPort)
}
