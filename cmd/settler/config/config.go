// Package config assembles the component configurations the CLI commands
// build from their flags.
package config

import (
	"fmt"

	"settlement-ingestion-service/internal/reconciler"
	"settlement-ingestion-service/internal/reporter"
	"settlement-ingestion-service/pkg/logger"
)

// CreateServiceConfig builds the ingestion service configuration for one
// tenant and optional merchant restriction.
func CreateServiceConfig(tenantID, merchantCode string) (*reconciler.ServiceConfig, error) {
	cfg := reconciler.DefaultServiceConfig()
	if tenantID != "" {
		cfg.TenantID = tenantID
	}
	cfg.MerchantCode = merchantCode

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	return cfg, nil
}

// CreateReportConfig builds a report configuration for the requested format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(format)
	return cfg
}

// CreateLoggerConfig builds the logger configuration from the global CLI
// flags. Verbose runs log debug-level with caller information.
func CreateLoggerConfig(verbose bool) *logger.Config {
	if verbose {
		return logger.DebugConfig()
	}
	cfg := logger.DefaultConfig()
	cfg.Level = logger.WarnLevel
	return cfg
}
