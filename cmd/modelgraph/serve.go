package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/modelgraph"
	"github.com/aretw0/modelgraph/internal/presentation/tui"
	httpAdapter "github.com/aretw0/modelgraph/pkg/adapters/http"
	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the modelgraph HTTP API. Sessions are kept in memory unless a Redis address
is configured, in which case they are shared between replicas.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics := observability.NewMetrics("modelgraph")
		studio, cleanup, err := buildStudio(ctx, cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithVersion(modelgraph.Version),
			httpAdapter.WithCORSOrigin(cfg.Server.CORSOrigin),
			httpAdapter.WithMetrics(metrics.Handler()),
			httpAdapter.WithDefaultMetadata(domain.Metadata{
				ModelID: cfg.Training.ModelID,
				Dataset: cfg.Training.Dataset,
			}),
		}
		if sub := studio.Submitter(); sub != nil {
			opts = append(opts, httpAdapter.WithSubmitter(sub))
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpAdapter.NewHandler(studio.Sessions(), studio.Catalog(), opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if isTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("Starting modelgraph server", "addr", srv.Addr, "version", modelgraph.Version)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		if watch, _ := cmd.Flags().GetBool("watch-catalog"); watch && cfg.Catalog.File != "" {
			if r, ok := studio.Catalog().(catalog.Resetter); ok {
				g.Go(func() error {
					return catalog.Watch(gctx, cfg.Catalog.File, r, logger)
				})
			}
		}
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			logger.Info("modelgraph server stopped gracefully")
			return nil
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides config)")
	serveCmd.Flags().Bool("watch-catalog", false, "Reload the catalog file when it changes")
}
