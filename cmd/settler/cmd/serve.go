package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"settlement-ingestion-service/internal/reconciler"
	"settlement-ingestion-service/internal/server"
	"settlement-ingestion-service/internal/store"
	"settlement-ingestion-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion HTTP service",
	Long: `Serve starts the HTTP service exposing settlement ingestion at
POST /v1/ingestions. Configuration comes from SETTLER_-prefixed environment
variables (SETTLER_ADDR, SETTLER_PG_DSN, SETTLER_TENANT_ID, ...).

Without SETTLER_PG_DSN the service runs against an in-memory store; useful
for local testing, useless for production.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.Level(cfg.LogLevel),
		Format: logger.Format(cfg.LogFormat),
		Output: logger.StderrOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var entryStore store.EntryStore
	if cfg.PGDSN == "" {
		log.Warn("SETTLER_PG_DSN not set; running against an in-memory store")
		entryStore = store.NewMemStore()
	} else {
		pool, err := pgxpool.New(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		defer pool.Close()

		pgStore := store.NewPGStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		entryStore = pgStore
	}

	serviceConfig := reconciler.DefaultServiceConfig()
	serviceConfig.TenantID = cfg.TenantID
	serviceConfig.MerchantCode = cfg.MerchantCode
	if err := serviceConfig.Validate(); err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	srv := server.NewServer(cfg, reconciler.NewService(serviceConfig, entryStore))
	return srv.ListenAndServe(ctx)
}
