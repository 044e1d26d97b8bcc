package models

import "time"

// SessionStatus represents the lifecycle state of a workflow session.
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "initializing"
	SessionStatusActive       SessionStatus = "active"
	SessionStatusCompleted    SessionStatus = "completed"
)

// SessionConfig is the immutable configuration a session is started with.
type SessionConfig struct {
	SessionID         string
	Context           string
	Goal              string
	Requirements      []string
	Constraints       []Constraint
	CoverageThreshold float64 // 0-100
	EnablePivots      bool
	TemplateRefs      []string
	OutputFormats     []string
	Metadata          map[string]string
}

// Minimal reports whether the session has no constraints configured.
// Minimal sessions get a relaxed evaluation since there is nothing to
// violate against except the blanket threshold.
func (c SessionConfig) Minimal() bool {
	return len(c.Constraints) == 0
}

// Artifact is a piece of free-text content evaluated within a session.
// Metadata may carry complexity/entropy hints the pivot evaluator reads.
type Artifact struct {
	ID        string
	Name      string
	Type      string
	Content   string
	Format    string
	Timestamp time.Time
	Metadata  map[string]string
}

// HistoryEntry is one append-only log record of session activity.
type HistoryEntry struct {
	Timestamp   time.Time
	Type        string // start, advance, complete, reset, pivot, ...
	Phase       string
	Description string
}

// SessionState is the aggregate root for one workflow run. It is created
// on start and mutated in place by every workflow action. Reset
// reinitializes coverage and phase state but never clears history.
type SessionState struct {
	Config       SessionConfig
	CurrentPhase string
	Phases       map[string]*Phase
	PhaseOrder   []string // methodology-declared sequence of phase ids
	Coverage     CoverageSnapshot
	Artifacts    []Artifact
	History      []HistoryEntry
	Status       SessionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Phase returns the phase with the given id, or nil.
func (s *SessionState) Phase(id string) *Phase {
	return s.Phases[id]
}

// NextPhase returns the phase id following the given one in the declared
// order, or "" when id is the last phase (or unknown).
func (s *SessionState) NextPhase(id string) string {
	for i, pid := range s.PhaseOrder {
		if pid == id && i+1 < len(s.PhaseOrder) {
			return s.PhaseOrder[i+1]
		}
	}
	return ""
}

// AppendHistory adds a log entry stamped with the current time.
func (s *SessionState) AppendHistory(entryType, phase, description string) {
	s.History = append(s.History, HistoryEntry{
		Timestamp:   time.Now().UTC(),
		Type:        entryType,
		Phase:       phase,
		Description: description,
	})
}
