package store

import (
	"context"
	"sync"
	"time"

	"settlement-ingestion-service/internal/models"
)

// MemStore is an in-memory entry store used for dry runs and tests. It
// applies the same semantics as the Postgres store: source keys are unique
// per tenant and entries past capture are immutable.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]*models.LedgerEntry // keyed by tenantID + "\x00" + sourceKey
	now     func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string]*models.LedgerEntry),
		now:     time.Now,
	}
}

func memKey(tenantID, sourceKey string) string {
	return tenantID + "\x00" + sourceKey
}

// Snapshot returns the stored source keys of one tenant.
func (s *MemStore) Snapshot(ctx context.Context, tenantID string) (map[string]EntryRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]EntryRef)
	for _, entry := range s.entries {
		if entry.TenantID == tenantID {
			snapshot[entry.SourceKey] = EntryRef{ID: entry.ID, Status: entry.Status}
		}
	}
	return snapshot, nil
}

// Insert stores a new entry, rejecting duplicate source keys.
func (s *MemStore) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(entry.TenantID, entry.SourceKey)
	if _, exists := s.entries[key]; exists {
		return ErrDuplicateKey
	}

	stored := *entry
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.entries[key] = &stored
	return nil
}

// Update rewrites a captured entry in place.
func (s *MemStore) Update(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(entry.TenantID, entry.SourceKey)
	existing, exists := s.entries[key]
	if !exists || existing.Status.PastCapture() {
		return ErrImmutableEntry
	}

	stored := *entry
	stored.Status = existing.Status
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = s.now()
	s.entries[key] = &stored
	return nil
}

// Get returns a stored entry by source key, or nil when absent.
func (s *MemStore) Get(tenantID, sourceKey string) *models.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[memKey(tenantID, sourceKey)]
}

// SetStatus overrides the lifecycle state of a stored entry. Intended for
// tests and for simulating downstream progression.
func (s *MemStore) SetStatus(tenantID, sourceKey string, status models.EntryStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.entries[memKey(tenantID, sourceKey)]; exists {
		entry.Status = status
	}
}

// Len returns the number of stored entries across all tenants.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
