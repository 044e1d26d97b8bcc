package store

import (
	"context"

	"github.com/jmfell/phasegate/internal/models"
)

// DecisionFilter specifies filters for listing constraint decisions.
type DecisionFilter struct {
	ConstraintID string
	SessionID    string
	Limit        int
}

// DecisionStore is the cross-session catalog of constraint decisions the
// consistency enforcer compares against. Session state itself is never
// persisted; only the per-constraint decision record is.
type DecisionStore interface {
	SaveDecision(ctx context.Context, d *models.ConstraintDecision) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]*models.ConstraintDecision, error)
	DeleteSessionDecisions(ctx context.Context, sessionID string) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
