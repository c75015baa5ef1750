package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rerun-io/rerun-sub038/internal/metrics"
)

func newServeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold a store open and serve its metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			sweepInterval, _ := cmd.Flags().GetDuration("sweep-interval")
			configPath, _ := cmd.Flags().GetString("config")

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, _, err := loadConfig(ctx, configPath, logger)
			if err != nil {
				return err
			}
			res, err := openResources(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer res.close(logger)

			handler := &metrics.Handler{
				Store:     res.store,
				Cache:     res.cache,
				StartTime: time.Now(),
			}
			if res.publisher != nil {
				handler.Publisher = res.publisher
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", handler)

			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			sweepDone := make(chan struct{})
			go runSweepLoop(ctx, res, sweepInterval, sweepDone)

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("serving metrics", "addr", addr)
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
			}

			logger.Info("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown error", "error", err)
			}
			<-sweepDone
			return nil
		},
	}
	cmd.Flags().String("addr", ":9090", "metrics listen address (host:port)")
	cmd.Flags().Duration("sweep-interval", 5*time.Second, "query cache invalidation sweep interval")
	return cmd
}

func runSweepLoop(ctx context.Context, res *resources, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res.cache.Sweep()
		case <-res.cache.Changed():
			res.cache.Sweep()
		}
	}
}
