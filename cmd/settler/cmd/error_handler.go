package cmd

import (
	"fmt"
	"os"
	"strings"

	"settlement-ingestion-service/pkg/errors"
	"settlement-ingestion-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if ingestErr, ok := errors.AsIngestError(err); ok {
		return h.handleIngestError(ingestErr)
	}

	return h.handleGenericError(err)
}

// handleIngestError handles IngestError with detailed context
func (h *CLIErrorHandler) handleIngestError(err *errors.IngestError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if err.Retryable() {
		fmt.Fprintf(os.Stderr, "\nThis failure is retryable; re-running the cycle is safe.\n")
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-IngestError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, check the logs or run with --verbose flag\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryTransport:
		return `Transport error help:
• Check connectivity to the settlement file source
• Verify the URL and any credentials the source requires
• Retry the cycle; fetches are safe to repeat
• Confirm with the acquirer that a file was published for the date`

	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Settlement lines must be exactly 401 characters
• Check that the file was transferred in binary mode, not re-encoded
• Malformed lines are dropped and counted; inspect the parse stats
• Verify the layout version with the acquirer`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify the action is "raw", "listar" or empty
• Check that all values are within acceptable ranges`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'settler ingest --help' to see all available options
• Try running with default settings first`

	case errors.CategoryPersistence:
		return `Persistence error help:
• Check the Postgres connection string and that the database is up
• Successfully written entries are kept; re-running completes the rest
• Re-ingestion is idempotent and will not duplicate entries`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• The run was aborted before any write; re-running is safe
• Check the database connection and the tenant configuration`

	default:
		return `For more help:
• Use 'settler --help' for general help
• Use 'settler ingest --help' for command-specific help
• Report bugs or ask for help on the project repository`
	}
}
