package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engram-dev/engram/pkg/agent/tool"
	"github.com/engram-dev/engram/pkg/agent/tool/core"
	"github.com/engram-dev/engram/pkg/cli/config"
	httpctrl "github.com/engram-dev/engram/pkg/controller/http"
	"github.com/engram-dev/engram/pkg/service/ranking"
	"github.com/engram-dev/engram/pkg/service/worker"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/engram-dev/engram/pkg/utils/logging"
	"github.com/engram-dev/engram/pkg/utils/safe"
)

func cmdServe() *cli.Command {
	var addr string
	var searchTimeout time.Duration
	var retentionInterval time.Duration
	var keepVersions int
	var auditRetention time.Duration
	var repoCfg config.Repository
	var tenantsCfg config.Tenants
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("ENGRAM_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "search-timeout",
			Usage:       "Deadline for a single ranked memory search",
			Value:       usecase.DefaultSearchTimeout,
			Sources:     cli.EnvVars("ENGRAM_SEARCH_TIMEOUT"),
			Destination: &searchTimeout,
		},
		&cli.DurationFlag{
			Name:        "retention-interval",
			Usage:       "How often the retention worker sweeps",
			Value:       time.Hour,
			Sources:     cli.EnvVars("ENGRAM_RETENTION_INTERVAL"),
			Destination: &retentionInterval,
		},
		&cli.IntFlag{
			Name:        "keep-versions",
			Usage:       "How many archived versions to keep per memory",
			Value:       10,
			Sources:     cli.EnvVars("ENGRAM_KEEP_VERSIONS"),
			Destination: &keepVersions,
		},
		&cli.DurationFlag{
			Name:        "audit-retention",
			Usage:       "How long to keep audit log entries",
			Value:       30 * 24 * time.Hour,
			Sources:     cli.EnvVars("ENGRAM_AUDIT_RETENTION"),
			Destination: &auditRetention,
		},
	}

	// Add shared config flags
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, tenantsCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Load tenant registry
			registry, err := tenantsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load tenant registry")
			}
			if registry.Empty() {
				logging.Default().Info("No tenants file configured, accepting any well-formed tenant ID")
			} else {
				logging.Default().Info("Tenant registry loaded",
					"path", tenantsCfg.Path(),
					"tenants", len(registry.List()))
			}

			// Initialize repository based on backend type
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			// Configure ranking: embedding similarity when Gemini is
			// available, usage counters otherwise
			ucOpts := []usecase.Option{
				usecase.WithSearchTimeout(searchTimeout),
			}
			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini client")
			}
			if llmClient != nil {
				ucOpts = append(ucOpts, usecase.WithRanker(ranking.NewVectorRanker(repo.Memory(), llmClient)))
				logging.Default().Info("Vector ranking enabled")
			} else {
				logging.Default().Info("Gemini not configured, using access-count ranking")
			}

			uc, err := usecase.New(repo, ucOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}
			defer uc.Close()

			// Build the tool dispatcher
			dispatcher := tool.NewDispatcher(core.New(uc),
				tool.WithTenantRegistry(registry),
				tool.WithAuditLog(uc.Audit),
			)

			// Start retention worker
			retention := worker.NewRetentionWorker(repo, retentionInterval, keepVersions, auditRetention)
			if err := retention.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start retention worker")
			}

			// Create HTTP server
			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(dispatcher, uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", addr,
					"operations", dispatcher.Operations())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				retention.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				retention.Stop()

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
