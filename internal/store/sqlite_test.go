package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfell/phasegate/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "phasegate.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	// Running migrations again must be a no-op, not an error.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	d := &models.ConstraintDecision{
		SessionID:    "s1",
		ConstraintID: "security",
		Coverage:     87.5,
		Mandatory:    true,
		Enforced:     true,
		Rationale:    "threat model reviewed",
	}
	require.NoError(t, s.SaveDecision(ctx, d))
	assert.NotEmpty(t, d.ID)
	assert.False(t, d.DecidedAt.IsZero())

	out, err := s.ListDecisions(ctx, DecisionFilter{ConstraintID: "security"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 87.5, got.Coverage)
	assert.True(t, got.Mandatory)
	assert.True(t, got.Enforced)
	assert.Equal(t, "threat model reviewed", got.Rationale)
}

func TestSQLiteStore_ListNewestFirstWithLimit(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		d := &models.ConstraintDecision{
			SessionID:    "s1",
			ConstraintID: "security",
			Coverage:     float64(50 + i*10),
			DecidedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveDecision(ctx, d))
	}

	out, err := s.ListDecisions(ctx, DecisionFilter{ConstraintID: "security", Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 70.0, out[0].Coverage, "newest decision first")
}

func TestSQLiteStore_FilterBySession(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDecision(ctx, &models.ConstraintDecision{SessionID: "s1", ConstraintID: "a"}))
	require.NoError(t, s.SaveDecision(ctx, &models.ConstraintDecision{SessionID: "s2", ConstraintID: "a"}))

	out, err := s.ListDecisions(ctx, DecisionFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].SessionID)
}

func TestSQLiteStore_DeleteSessionDecisions(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDecision(ctx, &models.ConstraintDecision{SessionID: "s1", ConstraintID: "a"}))
	require.NoError(t, s.SaveDecision(ctx, &models.ConstraintDecision{SessionID: "s1", ConstraintID: "b"}))
	require.NoError(t, s.SaveDecision(ctx, &models.ConstraintDecision{SessionID: "s2", ConstraintID: "a"}))

	removed, err := s.DeleteSessionDecisions(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	rest, err := s.ListDecisions(ctx, DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "s2", rest[0].SessionID)
}
