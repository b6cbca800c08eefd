package store

import (
	"encoding/json"
	"time"
)

// Snapshot is one immutable capture of a subject's serialized state.
// Rows are append-only: nothing in this package updates or deletes them.
type Snapshot struct {
	ID          string          `json:"id"`
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	State       string          `json:"state,omitempty"` // lifecycle label at capture time, not unique
	Payload     json.RawMessage `json:"payload"`         // serialized document
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
}

// Before reports whether s is older than other in newest-first order.
// Ties on CreatedAt are broken by ID descending so "latest" is
// deterministic across backends.
func (s *Snapshot) Before(other *Snapshot) bool {
	if s.CreatedAt.Equal(other.CreatedAt) {
		return s.ID < other.ID
	}
	return s.CreatedAt.Before(other.CreatedAt)
}
