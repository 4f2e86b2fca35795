// Package reconciler applies derived ledger entries to the store so that
// re-ingesting the same settlement file is a no-op.
//
// Identity is the deterministic source key. The reconciler reads one snapshot
// of the tenant's persisted keys per run and classifies every derived entry
// as create, update or skip against it. Entries whose lifecycle has moved
// past capture are never touched, and a failed write never rolls back the
// rest of the run.
package reconciler

import (
	"context"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/store"
	apperrors "settlement-ingestion-service/pkg/errors"
	"settlement-ingestion-service/pkg/logger"
)

// Action classifies what the reconciler did with one entry.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Outcome summarizes one reconcile pass.
type Outcome struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	// Errors holds the per-entry failures. A non-empty list does not mean
	// the run failed; successfully written entries stay written.
	Errors []*apperrors.IngestError `json:"errors,omitempty"`
}

// Total returns how many entries the pass examined.
func (o *Outcome) Total() int {
	return o.Created + o.Updated + o.Skipped + o.Failed
}

// Reconciler writes derived entries through an EntryStore.
type Reconciler struct {
	store  store.EntryStore
	logger logger.Logger
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(entryStore store.EntryStore) *Reconciler {
	return &Reconciler{
		store:  entryStore,
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Reconcile applies the entries of one run. It returns an error only when the
// snapshot read fails; individual write failures are collected in the outcome.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID string, entries []*models.LedgerEntry) (*Outcome, error) {
	snapshot, err := r.store.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, apperrors.ReconciliationError(apperrors.CodeSnapshotFailed, "reconcile", err).
			WithContext("tenant_id", tenantID)
	}

	outcome := &Outcome{}
	for _, entry := range entries {
		switch r.decide(snapshot, entry) {
		case ActionCreate:
			r.create(ctx, entry, outcome)
		case ActionUpdate:
			r.update(ctx, entry, outcome)
		case ActionSkip:
			outcome.Skipped++
		}
	}

	r.logger.WithFields(logger.Fields{
		"tenant_id": tenantID,
		"created":   outcome.Created,
		"updated":   outcome.Updated,
		"skipped":   outcome.Skipped,
		"failed":    outcome.Failed,
	}).Info("Reconcile pass complete")

	return outcome, nil
}

// decide classifies one entry against the snapshot.
func (r *Reconciler) decide(snapshot map[string]store.EntryRef, entry *models.LedgerEntry) Action {
	ref, exists := snapshot[entry.SourceKey]
	if !exists {
		return ActionCreate
	}
	if ref.Status.PastCapture() {
		return ActionSkip
	}
	return ActionUpdate
}

func (r *Reconciler) create(ctx context.Context, entry *models.LedgerEntry, outcome *Outcome) {
	err := r.store.Insert(ctx, entry)
	switch {
	case err == nil:
		outcome.Created++
	case err == store.ErrDuplicateKey:
		// Another run won the insert race; the entry is present, which is
		// all idempotency asks for.
		outcome.Skipped++
	default:
		r.fail(entry, apperrors.PersistenceError(apperrors.CodeWriteFailed, entry.SourceKey, err), outcome)
	}
}

func (r *Reconciler) update(ctx context.Context, entry *models.LedgerEntry, outcome *Outcome) {
	err := r.store.Update(ctx, entry)
	switch {
	case err == nil:
		outcome.Updated++
	case err == store.ErrImmutableEntry:
		// The snapshot was stale: downstream progressed the entry between
		// our read and this write. Leave it alone.
		outcome.Skipped++
	default:
		r.fail(entry, apperrors.PersistenceError(apperrors.CodeWriteFailed, entry.SourceKey, err), outcome)
	}
}

func (r *Reconciler) fail(entry *models.LedgerEntry, ingestErr *apperrors.IngestError, outcome *Outcome) {
	ingestErr = ingestErr.WithContext("kind", string(entry.Kind))
	outcome.Failed++
	outcome.Errors = append(outcome.Errors, ingestErr)
	r.logger.WithError(ingestErr).WithField("source_key", entry.SourceKey).
		Warn("Entry write failed, continuing with remaining entries")
}
