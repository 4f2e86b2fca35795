// Package store persists ledger entries.
//
// The reconciler drives every write through the EntryStore interface: a
// Postgres implementation for service deployments and an in-memory one for
// dry runs and tests. Source keys are unique per store; the database enforces
// this with a unique index so concurrent runs cannot double-insert.
package store

import (
	"context"
	"errors"

	"settlement-ingestion-service/internal/models"

	"github.com/google/uuid"
)

// ErrDuplicateKey indicates an insert lost the race against another run that
// already persisted the same source key. Callers treat it as "already
// present", not as a failure.
var ErrDuplicateKey = errors.New("ledger entry already exists for source key")

// ErrImmutableEntry indicates an update targeted an entry whose lifecycle has
// progressed beyond capture. Such entries are never overwritten.
var ErrImmutableEntry = errors.New("ledger entry is past capture and immutable")

// EntryRef is the snapshot view of a persisted entry: just enough to decide
// between create, update and skip without loading full rows.
type EntryRef struct {
	ID     uuid.UUID
	Status models.EntryStatus
}

// EntryStore is the persistence boundary of the reconciler.
type EntryStore interface {
	// Snapshot returns the persisted source keys of one tenant with their
	// identities and lifecycle states, read once per run.
	Snapshot(ctx context.Context, tenantID string) (map[string]EntryRef, error)

	// Insert persists a new entry. Returns ErrDuplicateKey when the source
	// key is already present.
	Insert(ctx context.Context, entry *models.LedgerEntry) error

	// Update rewrites a captured entry in place. Returns ErrImmutableEntry
	// when the stored row has progressed past capture.
	Update(ctx context.Context, entry *models.LedgerEntry) error
}
