package store

import (
	"context"
	"encoding/json"

	"github.com/example/memento/internal/metrics"
)

// InstrumentedStore wraps a snapshot store and counts successful appends
// under the backend label. Reads pass through untouched.
type InstrumentedStore struct {
	inner   SnapshotStoreInterface
	backend string
}

func NewInstrumentedStore(inner SnapshotStoreInterface, backend string) *InstrumentedStore {
	return &InstrumentedStore{
		inner:   inner,
		backend: backend,
	}
}

func (s *InstrumentedStore) Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*Snapshot, error) {
	snap, err := s.inner.Append(ctx, subjectType, subjectID, payload, state, createdBy)
	if err != nil {
		return nil, err
	}
	metrics.SnapshotsAppendedTotal.WithLabelValues(s.backend).Inc()
	return snap, nil
}

func (s *InstrumentedStore) Latest(ctx context.Context, subjectType, subjectID string) (*Snapshot, error) {
	return s.inner.Latest(ctx, subjectType, subjectID)
}

func (s *InstrumentedStore) LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*Snapshot, error) {
	return s.inner.LatestAtState(ctx, subjectType, subjectID, state)
}

func (s *InstrumentedStore) List(ctx context.Context, subjectType, subjectID string) ([]Snapshot, error) {
	return s.inner.List(ctx, subjectType, subjectID)
}

// Close forwards to the wrapped store when it holds resources.
func (s *InstrumentedStore) Close() error {
	if closer, ok := s.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
