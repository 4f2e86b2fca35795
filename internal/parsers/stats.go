package parsers

import (
	"settlement-ingestion-service/pkg/errors"
)

// ParseStats collects counters and recoverable errors for one decoded file.
// Malformed lines never abort a batch; they are dropped, logged and counted
// here so the run report can expose them.
type ParseStats struct {
	LinesRead       int                   `json:"lines_read"`
	BlankLines      int                   `json:"blank_lines"`
	RecordsDecoded  int                   `json:"records_decoded"`
	UnknownTypes    int                   `json:"unknown_types"`
	MalformedLines  int                   `json:"malformed_lines"`
	LineErrors      []*errors.IngestError `json:"line_errors,omitempty"`
	TrailerMismatch bool                  `json:"trailer_mismatch,omitempty"`
}

// NewParseStats creates empty statistics.
func NewParseStats() *ParseStats {
	return &ParseStats{}
}

// AddLineError records a dropped line together with its decode error.
func (s *ParseStats) AddLineError(err *errors.IngestError) {
	s.MalformedLines++
	s.LineErrors = append(s.LineErrors, err)
}

// HasErrors reports whether any line was dropped.
func (s *ParseStats) HasErrors() bool {
	return s.MalformedLines > 0
}
