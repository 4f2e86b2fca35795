package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"settlement-ingestion-service/cmd/settler/config"
	"settlement-ingestion-service/internal/fetcher"
	"settlement-ingestion-service/internal/reconciler"
	"settlement-ingestion-service/internal/reporter"
	"settlement-ingestion-service/internal/store"
	"settlement-ingestion-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the ingest command
var (
	inputFile    string
	sourceURL    string
	action       string
	tenantID     string
	merchantCode string
	outputFormat string
	outputFile   string
	pgDSN        string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a settlement file into the ledger",
	Long: `Ingest decodes a positional settlement file, applies the D-1 business
rules, derives ledger entries and reconciles them idempotently.

The file comes from --file or is pulled from --url. Without a Postgres DSN
the run writes to an in-memory store, which is useful together with
--action listar to preview what a real ingestion would persist.

Examples:
  # Full ingestion into Postgres
  settler ingest --file EXTRATO_20240520.txt --pg-dsn postgres://settler@localhost/settler

  # Preview the derived entries without persisting
  settler ingest --file EXTRATO_20240520.txt --action listar

  # Decode only, as JSON
  settler ingest --file EXTRATO_20240520.txt --action raw --output-format json

  # Restrict to one merchant
  settler ingest --file EXTRATO_20240520.txt --merchant 1234567890`,

	PreRunE: validateIngestFlags,
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&inputFile, "file", "f", "", "path to the settlement file")
	ingestCmd.Flags().StringVar(&sourceURL, "url", "", "URL to pull the settlement file from")
	ingestCmd.Flags().StringVarP(&action, "action", "a", "", `run action: "raw", "listar" or empty for a full ingestion`)
	ingestCmd.Flags().StringVarP(&tenantID, "tenant", "t", "default", "tenant the entries belong to")
	ingestCmd.Flags().StringVarP(&merchantCode, "merchant", "m", "", "restrict the run to one merchant code")
	ingestCmd.Flags().StringVar(&outputFormat, "output-format", "console", "output format: console, json, csv")
	ingestCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	ingestCmd.Flags().StringVar(&pgDSN, "pg-dsn", "", "Postgres DSN; empty runs against an in-memory store")

	viper.BindPFlag("file", ingestCmd.Flags().Lookup("file"))
	viper.BindPFlag("url", ingestCmd.Flags().Lookup("url"))
	viper.BindPFlag("action", ingestCmd.Flags().Lookup("action"))
	viper.BindPFlag("tenant", ingestCmd.Flags().Lookup("tenant"))
	viper.BindPFlag("merchant", ingestCmd.Flags().Lookup("merchant"))
	viper.BindPFlag("output-format", ingestCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", ingestCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("pg-dsn", ingestCmd.Flags().Lookup("pg-dsn"))
}

func validateIngestFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and env)
	inputFile = viper.GetString("file")
	sourceURL = viper.GetString("url")
	action = viper.GetString("action")
	tenantID = viper.GetString("tenant")
	merchantCode = viper.GetString("merchant")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	pgDSN = viper.GetString("pg-dsn")

	if inputFile == "" && sourceURL == "" {
		return fmt.Errorf("either --file or --url is required")
	}
	if inputFile != "" && sourceURL != "" {
		return fmt.Errorf("--file and --url are mutually exclusive")
	}

	if inputFile != "" {
		if err := validateFileExists(inputFile, "settlement file"); err != nil {
			return err
		}
	}

	if _, err := reconciler.ParseRunAction(action); err != nil {
		return fmt.Errorf("invalid action '%s'. Valid actions: raw, listar, or empty", action)
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	log, err := logger.NewLogger(config.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobalLogger(log)

	serviceConfig, err := config.CreateServiceConfig(tenantID, merchantCode)
	if err != nil {
		return err
	}

	entryStore, cleanup, err := openStore(ctx)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer cleanup()

	runAction, _ := reconciler.ParseRunAction(action)
	source := newSource()

	service := reconciler.NewService(serviceConfig, entryStore)
	report, err := service.Run(ctx, source, runAction)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	generator, err := reporter.NewReportGenerator(config.CreateReportConfig(outputFormat))
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if err := generator.GenerateReport(report, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if report.Outcome != nil && report.Outcome.Failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d entries failed to persist; successfully written entries were kept.\n",
			report.Outcome.Failed)
		os.Exit(6)
	}

	return nil
}

// newSource picks the fetcher matching the input flags.
func newSource() fetcher.Fetcher {
	if sourceURL != "" {
		return fetcher.NewHTTPFetcher(sourceURL, 0)
	}
	return fetcher.NewFileFetcher(nil, inputFile)
}

// openStore connects the entry store. With no DSN the run is backed by
// memory, which only makes sense together with preview actions.
func openStore(ctx context.Context) (store.EntryStore, func(), error) {
	if pgDSN == "" {
		if action == "" {
			fmt.Fprintln(os.Stderr, "Warning: no --pg-dsn given; entries are written to an in-memory store and discarded on exit")
		}
		return store.NewMemStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	pgStore := store.NewPGStore(pool)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgStore, pool.Close, nil
}
