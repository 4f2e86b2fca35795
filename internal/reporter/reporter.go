// Package reporter renders ingestion run reports.
//
// Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured data format for programmatic consumption
//   - CSV: per-entry rows for spreadsheet review of preview runs
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"settlement-ingestion-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeRecordCounts  bool `json:"include_record_counts"`
	IncludeParseErrors   bool `json:"include_parse_errors"`
	IncludeStageTimings  bool `json:"include_stage_timings"`
	IncludeEntryListings bool `json:"include_entry_listings"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeRecordCounts:  true,
		IncludeParseErrors:   true,
		IncludeStageTimings:  false,
		IncludeEntryListings: true,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders ingestion run reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders a run report to the provided writer
func (rg *ReportGenerator) GenerateReport(report *reconciler.RunReport, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("run report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport renders a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(report *reconciler.RunReport, writer io.Writer) error {
	fmt.Fprintf(writer, "SETTLEMENT INGESTION REPORT\n")
	fmt.Fprintf(writer, "Source: %s\n", report.Source)
	fmt.Fprintf(writer, "Tenant: %s\n", report.TenantID)
	if report.Cycle != "" {
		fmt.Fprintf(writer, "Cycle: %s\n", report.Cycle)
	}
	if report.Action != reconciler.RunActionIngest {
		fmt.Fprintf(writer, "Action: %s\n", report.Action)
	}
	fmt.Fprintf(writer, "Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(writer, "Duration: %s\n\n", report.Duration)

	if rg.config.IncludeRecordCounts && report.RecordCount != nil {
		fmt.Fprintf(writer, "=== DECODED RECORDS ===\n")
		rg.printRecordCounts(report.RecordCount, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeParseErrors && report.Parse != nil {
		fmt.Fprintf(writer, "=== PARSE QUALITY ===\n")
		fmt.Fprintf(writer, "%-24s %d\n", "Lines read:", report.Parse.LinesRead)
		fmt.Fprintf(writer, "%-24s %d\n", "Records decoded:", report.Parse.RecordsDecoded)
		fmt.Fprintf(writer, "%-24s %d\n", "Blank lines:", report.Parse.BlankLines)
		fmt.Fprintf(writer, "%-24s %d\n", "Unknown types:", report.Parse.UnknownTypes)
		fmt.Fprintf(writer, "%-24s %d\n", "Malformed lines:", report.Parse.MalformedLines)
		if report.Parse.TrailerMismatch {
			fmt.Fprintf(writer, "WARNING: trailer record count does not match lines read\n")
		}
		fmt.Fprintf(writer, "\n")
	}

	if report.Entries > 0 {
		fmt.Fprintf(writer, "=== DERIVED ENTRIES ===\n")
		fmt.Fprintf(writer, "%-24s %d\n", "Total:", report.Entries)
		if report.Derived != nil {
			fmt.Fprintf(writer, "%-24s %d\n", "Receivables:", report.Derived.Receivables)
			fmt.Fprintf(writer, "%-24s %d\n", "Payables:", report.Derived.Payables)
			fmt.Fprintf(writer, "%-24s %d\n", "Sales aggregates:", report.Derived.Aggregates)
			fmt.Fprintf(writer, "%-24s %d\n", "Vouchers:", report.Derived.Vouchers)
		}
		fmt.Fprintf(writer, "\n")
	}

	if report.Enriched != nil {
		fmt.Fprintf(writer, "=== ENRICHMENT ===\n")
		fmt.Fprintf(writer, "%s\n\n", report.Enriched)
	}

	if report.Outcome != nil {
		fmt.Fprintf(writer, "=== RECONCILE OUTCOME ===\n")
		fmt.Fprintf(writer, "%-24s %d\n", "Created:", report.Outcome.Created)
		fmt.Fprintf(writer, "%-24s %d\n", "Updated:", report.Outcome.Updated)
		fmt.Fprintf(writer, "%-24s %d\n", "Skipped:", report.Outcome.Skipped)
		fmt.Fprintf(writer, "%-24s %d\n", "Failed:", report.Outcome.Failed)
		for _, entryErr := range report.Outcome.Errors {
			fmt.Fprintf(writer, "  - %s\n", entryErr.Error())
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeEntryListings && len(report.PreviewEntries) > 0 {
		fmt.Fprintf(writer, "=== PREVIEW ENTRIES (not persisted) ===\n")
		for _, entry := range report.PreviewEntries {
			fmt.Fprintf(writer, "%-16s %12s  due %s  %s\n",
				entry.Kind, entry.Amount.StringFixed(2),
				entry.DueDate.Format("2006-01-02"), entry.SourceKey)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeStageTimings && len(report.Stages) > 0 {
		fmt.Fprintf(writer, "=== STAGE TIMINGS ===\n")
		names := make([]string, 0, len(report.Stages))
		for name := range report.Stages {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(writer, "%-24s %s\n", name+":", report.Stages[name])
		}
	}

	return nil
}

// printRecordCounts prints the per-type record counts in a stable order.
func (rg *ReportGenerator) printRecordCounts(counts map[string]int, writer io.Writer) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(writer, "%-24s %d\n", name+":", counts[name])
	}
}

// generateJSONReport renders a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report *reconciler.RunReport, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// generateCSVReport renders per-entry rows. Only preview runs carry entry
// listings; for other runs the CSV holds the outcome summary row.
func (rg *ReportGenerator) generateCSVReport(report *reconciler.RunReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if len(report.PreviewEntries) > 0 {
		if rg.config.CSVHeaders {
			headers := []string{"Kind", "Amount", "Due_Date", "Source_Key", "Counterparty", "Batch", "NSU"}
			if err := csvWriter.Write(headers); err != nil {
				return fmt.Errorf("failed to write CSV headers: %w", err)
			}
		}
		for _, entry := range report.PreviewEntries {
			record := []string{
				string(entry.Kind),
				entry.Amount.StringFixed(2),
				entry.DueDate.Format("2006-01-02"),
				entry.SourceKey,
				entry.Counterparty,
				entry.Metadata.BatchNumber,
				entry.Metadata.NSU,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write entry record: %w", err)
			}
		}
		return nil
	}

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{"Source", "Entries", "Created", "Updated", "Skipped", "Failed"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	outcome := report.Outcome
	if outcome == nil {
		outcome = &reconciler.Outcome{}
	}
	record := []string{
		report.Source,
		fmt.Sprintf("%d", report.Entries),
		fmt.Sprintf("%d", outcome.Created),
		fmt.Sprintf("%d", outcome.Updated),
		fmt.Sprintf("%d", outcome.Skipped),
		fmt.Sprintf("%d", outcome.Failed),
	}
	if err := csvWriter.Write(record); err != nil {
		return fmt.Errorf("failed to write summary record: %w", err)
	}
	return nil
}
