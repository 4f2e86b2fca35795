package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"settlement-ingestion-service/internal/fetcher"
	"settlement-ingestion-service/internal/reconciler"
	apperrors "settlement-ingestion-service/pkg/errors"
	"settlement-ingestion-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Server handles ingestion requests over HTTP.
type Server struct {
	config  *Config
	service *reconciler.Service
	logger  logger.Logger
}

// NewServer creates an HTTP server around the given ingestion service.
func NewServer(config *Config, service *reconciler.Service) *Server {
	return &Server{
		config:  config,
		service: service,
		logger:  logger.GetGlobalLogger().WithComponent("http_server"),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.config.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingestions", s.handleIngestion)
	})
	return r
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.config.Addr).Info("HTTP server listening")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngestion runs one ingestion. The settlement file arrives in the
// request body, or is pulled from the URL named by the "url" query parameter.
// The "action" query parameter selects raw decoding ("raw"), a dry run
// ("listar") or a full persisted ingestion (empty). "tenant" and "merchant"
// narrow the run; "cycle" and "date" are echoed into the report.
func (s *Server) handleIngestion(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	action, err := reconciler.ParseRunAction(query.Get("action"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	scope := reconciler.RunScope{
		TenantID:     query.Get("tenant"),
		MerchantCode: query.Get("merchant"),
		Cycle:        query.Get("cycle"),
		TargetDate:   query.Get("date"),
	}
	if scope.TargetDate != "" {
		if _, parseErr := time.Parse("2006-01-02", scope.TargetDate); parseErr != nil {
			s.writeError(w, apperrors.ValidationError(apperrors.CodeInvalidValue, "date", scope.TargetDate, parseErr).
				WithSuggestion("date must be formatted as YYYY-MM-DD"))
			return
		}
	}

	var source fetcher.Fetcher
	if url := query.Get("url"); url != "" {
		source = fetcher.NewHTTPFetcher(url, s.config.FetchTimeout)
	} else {
		body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
		if readErr != nil {
			s.writeError(w, apperrors.TransportError(apperrors.CodeFetchFailed, "request body", readErr))
			return
		}
		source = fetcher.NewBytesFetcher(body, "request body")
	}

	report, err := s.service.RunScoped(r.Context(), source, action, scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Category   string                 `json:"category"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Retryable  bool                   `json:"retryable"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	ingestErr := apperrors.WrapIfNeeded(err, apperrors.CategoryInternal,
		apperrors.CodeUnexpectedError, "request failed")

	s.logger.WithError(ingestErr).Warn("Ingestion request failed")

	writeJSON(w, statusFor(ingestErr), errorResponse{
		Category:   string(ingestErr.Category),
		Code:       string(ingestErr.Code),
		Message:    ingestErr.Message,
		Suggestion: ingestErr.Suggestion,
		Context:    ingestErr.Context,
		Retryable:  ingestErr.Retryable(),
	})
}

// statusFor maps the error taxonomy onto HTTP status codes. Upstream fetch
// failures are gateway errors; an empty or unusable file is the client's
// problem; everything persistence-side is ours.
func statusFor(err *apperrors.IngestError) int {
	switch err.Category {
	case apperrors.CategoryTransport:
		if err.Code == apperrors.CodeEmptyContent {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case apperrors.CategoryFile:
		return http.StatusBadGateway
	case apperrors.CategoryParse:
		return http.StatusUnprocessableEntity
	case apperrors.CategoryValidation, apperrors.CategoryConfiguration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
