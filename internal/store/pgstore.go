package store

import (
	"context"
	"encoding/json"
	"time"

	"settlement-ingestion-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PGStore persists ledger entries in Postgres. Source-key uniqueness is
// enforced by a unique index on (tenant_id, source_key); a violated insert
// surfaces as ErrDuplicateKey so the reconciler can treat the race as a skip.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore creates a Postgres-backed entry store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool: pool,
		now:  time.Now,
	}
}

// EnsureSchema creates the ledger table and its uniqueness index when they
// do not exist yet. Safe to run on every startup.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id           UUID PRIMARY KEY,
			tenant_id    TEXT NOT NULL,
			source_key   TEXT NOT NULL,
			kind         TEXT NOT NULL,
			amount       NUMERIC(18,2) NOT NULL,
			due_date     DATE,
			counterparty TEXT NOT NULL DEFAULT '',
			linked_to    UUID,
			status       TEXT NOT NULL DEFAULT 'captured',
			metadata     JSONB NOT NULL DEFAULT '{}',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL,
			UNIQUE (tenant_id, source_key)
		)`)
	return errors.Wrap(err, "schema bootstrap failed")
}

// Snapshot reads the persisted source keys of one tenant.
func (s *PGStore) Snapshot(ctx context.Context, tenantID string) (map[string]EntryRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_key, id, status FROM ledger_entries WHERE tenant_id = $1`,
		tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot query failed")
	}
	defer rows.Close()

	snapshot := make(map[string]EntryRef)
	for rows.Next() {
		var sourceKey string
		var ref EntryRef
		if err := rows.Scan(&sourceKey, &ref.ID, &ref.Status); err != nil {
			return nil, errors.Wrap(err, "snapshot row scan failed")
		}
		snapshot[sourceKey] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "snapshot iteration failed")
	}
	return snapshot, nil
}

// Insert persists a new captured entry.
func (s *PGStore) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return errors.Wrap(err, "metadata marshal failed")
	}

	now := s.now()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledger_entries
		   (id, tenant_id, source_key, kind, amount, due_date, counterparty, linked_to, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.TenantID, entry.SourceKey, entry.Kind, entry.Amount,
		entry.DueDate, entry.Counterparty, nullableID(entry), entry.Status,
		metadata, now, now)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return errors.Wrap(err, "entry insert failed")
	}
	return nil
}

// Update rewrites a captured entry. The status guard in the WHERE clause is
// what keeps classified and reconciled rows untouched even when the snapshot
// read is stale.
func (s *PGStore) Update(ctx context.Context, entry *models.LedgerEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return errors.Wrap(err, "metadata marshal failed")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ledger_entries
		    SET kind = $2, amount = $3, due_date = $4, counterparty = $5,
		        linked_to = $6, metadata = $7, updated_at = $8
		  WHERE id = $1 AND status = 'captured'`,
		entry.ID, entry.Kind, entry.Amount, entry.DueDate, entry.Counterparty,
		nullableID(entry), metadata, s.now())
	if err != nil {
		return errors.Wrap(err, "entry update failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrImmutableEntry
	}
	return nil
}

// nullableID maps the zero linked-to UUID to NULL.
func nullableID(entry *models.LedgerEntry) interface{} {
	if entry.LinkedTo == uuid.Nil {
		return nil
	}
	return entry.LinkedTo
}
