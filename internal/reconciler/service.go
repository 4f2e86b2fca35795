package reconciler

import (
	"context"
	"time"

	"settlement-ingestion-service/internal/deriver"
	"settlement-ingestion-service/internal/enricher"
	"settlement-ingestion-service/internal/fetcher"
	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/parsers"
	"settlement-ingestion-service/internal/rules"
	"settlement-ingestion-service/internal/store"
	apperrors "settlement-ingestion-service/pkg/errors"
	"settlement-ingestion-service/pkg/logger"
)

// RunAction selects how far an ingestion run goes.
type RunAction string

const (
	// RunActionIngest runs the full pipeline and persists the result.
	RunActionIngest RunAction = ""
	// RunActionRaw stops after decoding and returns the typed records.
	RunActionRaw RunAction = "raw"
	// RunActionPreview runs the full pipeline but persists nothing.
	RunActionPreview RunAction = "listar"
)

// ParseRunAction maps a request action token to a RunAction.
func ParseRunAction(token string) (RunAction, error) {
	switch RunAction(token) {
	case RunActionIngest, RunActionRaw, RunActionPreview:
		return RunAction(token), nil
	}
	return RunActionIngest, apperrors.ValidationError(apperrors.CodeInvalidValue, "action", token, nil).
		WithSuggestion(`action must be "raw", "listar" or empty`)
}

// ServiceConfig holds configuration options for the ingestion service.
type ServiceConfig struct {
	// TenantID scopes every derived entry and the reconcile snapshot.
	TenantID string
	// MerchantCode restricts the run to one merchant's records. Empty
	// keeps every merchant in the file.
	MerchantCode string

	Rules    *rules.Config
	Deriver  *deriver.Config
	Enricher *enricher.Config
	Decoder  *parsers.DecoderConfig
}

// DefaultServiceConfig returns a default service configuration.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		TenantID: "default",
		Rules:    rules.DefaultConfig(),
		Deriver:  deriver.DefaultConfig(),
		Enricher: enricher.DefaultConfig(),
		Decoder:  parsers.DefaultDecoderConfig(),
	}
}

// Validate checks the service configuration.
func (c *ServiceConfig) Validate() error {
	if c.TenantID == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "tenant_id", nil, nil)
	}
	if c.Rules != nil {
		if err := c.Rules.Validate(); err != nil {
			return err
		}
	}
	if c.Decoder != nil {
		if err := c.Decoder.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RunScope narrows one run, overriding the service defaults. Zero fields
// fall back to the configured values.
type RunScope struct {
	// TenantID scopes the derived entries and the reconcile snapshot.
	TenantID string
	// MerchantCode keeps only one merchant's records.
	MerchantCode string
	// Cycle is the caller's processing-cycle identifier, echoed in the
	// report for traceability.
	Cycle string
	// TargetDate is the settlement day the caller asked for, echoed in
	// the report. The processing window itself always comes from the
	// file header.
	TargetDate string
}

// RunReport is the outcome of one ingestion run, rendered by the reporter
// and returned by the HTTP API.
type RunReport struct {
	Source     string    `json:"source"`
	Action     RunAction `json:"action,omitempty"`
	TenantID   string    `json:"tenant_id"`
	Cycle      string    `json:"cycle,omitempty"`
	TargetDate string    `json:"target_date,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`

	Parse       *parsers.ParseStats `json:"parse"`
	RecordCount map[string]int      `json:"record_count"`

	// Records carries the decoded set for raw runs only.
	Records *models.RecordSet `json:"records,omitempty"`

	Derived  *deriver.Result `json:"-"`
	Entries  int             `json:"entries"`
	Enriched *enricher.Stats `json:"enriched,omitempty"`

	// Outcome is nil for raw and preview runs.
	Outcome *Outcome `json:"outcome,omitempty"`

	// PreviewEntries carries the derived entries of a preview run so the
	// caller can inspect what an ingest would write.
	PreviewEntries []*models.LedgerEntry `json:"preview_entries,omitempty"`

	Stages map[string]time.Duration `json:"-"`
}

// Service runs the full ingestion pipeline: fetch, decode, filter, correct,
// derive, enrich, reconcile.
type Service struct {
	config     *ServiceConfig
	decoder    *parsers.Decoder
	filter     *rules.Filter
	corrector  *rules.Corrector
	engine     *deriver.Engine
	enricher   *enricher.Enricher
	reconciler *Reconciler
	logger     logger.Logger
}

// NewService creates an ingestion service writing through the given store.
func NewService(config *ServiceConfig, entryStore store.EntryStore) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	return &Service{
		config:     config,
		decoder:    parsers.NewDecoder(config.Decoder),
		filter:     rules.NewFilter(config.Rules),
		corrector:  rules.NewCorrector(config.Rules),
		engine:     deriver.NewEngine(config.Deriver),
		enricher:   enricher.NewEnricher(config.Enricher),
		reconciler: NewReconciler(entryStore),
		logger:     logger.GetGlobalLogger().WithComponent("ingestion_service"),
	}
}

// Run executes one ingestion run against the given source under the
// service's configured tenant and merchant scope.
func (s *Service) Run(ctx context.Context, source fetcher.Fetcher, action RunAction) (*RunReport, error) {
	return s.RunScoped(ctx, source, action, RunScope{})
}

// RunScoped executes one ingestion run with per-run scope overrides.
func (s *Service) RunScoped(ctx context.Context, source fetcher.Fetcher, action RunAction, scope RunScope) (*RunReport, error) {
	started := time.Now()
	timer := logger.NewStageTimer(s.logger, source.Source())

	tenantID := scope.TenantID
	if tenantID == "" {
		tenantID = s.config.TenantID
	}
	merchantCode := scope.MerchantCode
	if merchantCode == "" {
		merchantCode = s.config.MerchantCode
	}

	report := &RunReport{
		Source:     source.Source(),
		Action:     action,
		TenantID:   tenantID,
		Cycle:      scope.Cycle,
		TargetDate: scope.TargetDate,
		StartedAt:  started,
	}
	defer func() {
		timer.Finish()
		report.Stages = timer.Durations()
		report.Duration = time.Since(started).String()
	}()

	timer.Stage("fetch")
	content, err := source.Fetch(ctx)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryTransport,
			apperrors.CodeFetchFailed, "settlement file fetch failed")
	}

	timer.Stage("decode")
	records, stats, err := s.decoder.Decode(content)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryParse,
			apperrors.CodeMalformedRecord, "settlement file decode failed")
	}
	report.Parse = stats
	report.RecordCount = records.CountsByType()

	// A file that decodes to nothing is a transport-level failure: either
	// the source sent an empty body or the content was not a settlement
	// file at all.
	if records.Total() == 0 {
		return nil, apperrors.TransportError(apperrors.CodeEmptyContent, source.Source(), nil)
	}

	if action == RunActionRaw {
		report.Records = records
		return report, nil
	}

	timer.Stage("filter")
	filtered := s.filter.Apply(records, merchantCode)
	filtered.Summaries = s.corrector.Correct(filtered.Summaries)

	timer.Stage("derive")
	derived := s.engine.Derive(tenantID, filtered)
	report.Derived = derived
	report.Entries = len(derived.Entries)

	timer.Stage("enrich")
	report.Enriched = s.enricher.Enrich(derived.Entries, filtered)

	if action == RunActionPreview {
		report.PreviewEntries = derived.Entries
		return report, nil
	}

	timer.Stage("persist")
	outcome, err := s.reconciler.Reconcile(ctx, tenantID, derived.Entries)
	if err != nil {
		return nil, err
	}
	report.Outcome = outcome
	return report, nil
}
