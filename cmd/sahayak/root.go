package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/config"
	"github.com/omnandre07/SchemeSahayak/internal/engine"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/metrics"
	"github.com/omnandre07/SchemeSahayak/internal/oracle"
	"github.com/omnandre07/SchemeSahayak/internal/server"
	"github.com/omnandre07/SchemeSahayak/internal/session"
)

const version = "0.3.1"

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sahayak",
		Short: "SchemeSahayak - discover government benefit schemes through dialogue",
		Long: `SchemeSahayak helps citizens find government benefit schemes they are
eligible for through a short clarifying conversation. It runs against a
hosted reasoning service when configured and falls back to deterministic
rule-based matching when offline.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newChatCommand(&configPath))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sahayak %s\n", version)
		},
	})

	return rootCmd
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger := logging.NewComponentLogger("serve")

			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			logger.Info("Loaded catalog with %d programs from %s", cat.Len(), cfg.CatalogPath)

			m := metrics.New()
			controller := buildController(cfg, cat, m)
			srv := server.NewServer(controller, m, &server.ServerConfig{
				Host:           cfg.Server.Host,
				Port:           cfg.Server.Port,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				ReadTimeout:    30 * time.Second,
				WriteTimeout:   30 * time.Second,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			group, ctx := errgroup.WithContext(ctx)
			group.Go(srv.Start)
			group.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Stop(shutdownCtx)
			})

			return group.Wait()
		},
	}
}

// buildController wires the engine from configuration. With no oracle base
// URL the deterministic adapter serves every call.
func buildController(cfg *config.Config, cat *catalog.Catalog, m *metrics.Metrics) *engine.Controller {
	opts := []engine.Option{engine.WithOracleTimeout(cfg.OracleTimeout())}
	if m != nil {
		opts = append(opts, engine.WithMetrics(m))
	}
	return engine.NewController(
		session.NewLRUStore(cfg.Session.Capacity, cfg.SessionTTL()),
		cat,
		buildOracle(cfg),
		opts...,
	)
}

func buildOracle(cfg *config.Config) oracle.Oracle {
	if cfg.Oracle.BaseURL == "" {
		return nil
	}
	retryConfig := apperrors.DefaultRetryConfig()
	if cfg.Oracle.MaxRetries > 0 {
		retryConfig.MaxAttempts = cfg.Oracle.MaxRetries
	}
	return oracle.NewRetryOracle(oracle.NewHTTPClient(oracle.HTTPClientConfig{
		BaseURL: cfg.Oracle.BaseURL,
		APIKey:  cfg.Oracle.APIKey,
		Timeout: cfg.OracleTimeout(),
	}), retryConfig)
}
