package store

import (
	"context"
	"sync"

	"github.com/jmfell/phasegate/internal/models"
)

// MemoryStore is an in-process DecisionStore. It backs runs without a
// configured database path and keeps tests hermetic.
type MemoryStore struct {
	mu        sync.Mutex
	decisions []*models.ConstraintDecision
}

// NewMemoryStore returns an empty in-memory decision store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveDecision appends a decision, assigning an id when absent.
func (m *MemoryStore) SaveDecision(_ context.Context, d *models.ConstraintDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = newULID()
	}
	cp := *d
	m.decisions = append(m.decisions, &cp)
	return nil
}

// ListDecisions returns decisions matching the filter, newest first.
func (m *MemoryStore) ListDecisions(_ context.Context, filter DecisionFilter) ([]*models.ConstraintDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.ConstraintDecision
	for i := len(m.decisions) - 1; i >= 0; i-- {
		d := m.decisions[i]
		if filter.ConstraintID != "" && d.ConstraintID != filter.ConstraintID {
			continue
		}
		if filter.SessionID != "" && d.SessionID != filter.SessionID {
			continue
		}
		cp := *d
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// DeleteSessionDecisions removes every decision recorded by a session.
func (m *MemoryStore) DeleteSessionDecisions(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []*models.ConstraintDecision
	var removed int64
	for _, d := range m.decisions {
		if d.SessionID == sessionID {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	m.decisions = kept
	return removed, nil
}

// Migrate is a no-op for the in-memory store.
func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
