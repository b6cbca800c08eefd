package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/memento/internal/infrastructure/store"
)

// MockSnapshotStore is a mock implementation of SnapshotStoreInterface for testing
type MockSnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]store.Snapshot
	seq       int

	// For tracking calls in tests
	AppendCalls    []AppendCall
	AppendErr      error
	LatestErr      error
	AppendCallback func(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*store.Snapshot, error)
}

// AppendCall records parameters passed to Append
type AppendCall struct {
	SubjectType string
	SubjectID   string
	Payload     json.RawMessage
	State       string
	CreatedBy   string
}

// NewMockSnapshotStore creates a new MockSnapshotStore
func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{
		snapshots:   make(map[string][]store.Snapshot),
		AppendCalls: make([]AppendCall, 0),
	}
}

// Append stores a snapshot in memory
func (m *MockSnapshotStore) Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Record the call
	m.AppendCalls = append(m.AppendCalls, AppendCall{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Payload:     payload,
		State:       state,
		CreatedBy:   createdBy,
	})

	// Use callback if provided
	if m.AppendCallback != nil {
		return m.AppendCallback(ctx, subjectType, subjectID, payload, state, createdBy)
	}

	// Return error if set
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}

	snap := m.add(subjectType, subjectID, payload, state, createdBy)
	return &snap, nil
}

// add appends a snapshot with a strictly increasing timestamp so Latest is
// deterministic even when appends land within the same clock tick.
// Callers must hold m.mu.
func (m *MockSnapshotStore) add(subjectType, subjectID string, payload json.RawMessage, state, createdBy string) store.Snapshot {
	m.seq++
	snap := store.Snapshot{
		ID:          uuid.New().String(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		State:       state,
		Payload:     append(json.RawMessage(nil), payload...),
		CreatedAt:   time.Unix(0, int64(m.seq)).UTC(),
		CreatedBy:   createdBy,
	}
	key := subjectType + "/" + subjectID
	m.snapshots[key] = append(m.snapshots[key], snap)
	return snap
}

// Latest returns the most recent snapshot for a subject, or nil
func (m *MockSnapshotStore) Latest(ctx context.Context, subjectType, subjectID string) (*store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	return m.latestWhere(subjectType, subjectID, func(store.Snapshot) bool { return true }), nil
}

// LatestAtState returns the most recent snapshot at the given state, or nil
func (m *MockSnapshotStore) LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	return m.latestWhere(subjectType, subjectID, func(s store.Snapshot) bool { return s.State == state }), nil
}

func (m *MockSnapshotStore) latestWhere(subjectType, subjectID string, match func(store.Snapshot) bool) *store.Snapshot {
	var latest *store.Snapshot
	for _, snap := range m.snapshots[subjectType+"/"+subjectID] {
		if !match(snap) {
			continue
		}
		if latest == nil || latest.Before(&snap) {
			s := snap
			latest = &s
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	cp.Payload = append(json.RawMessage(nil), latest.Payload...)
	return &cp
}

// List returns every snapshot for a subject, newest first
func (m *MockSnapshotStore) List(ctx context.Context, subjectType, subjectID string) ([]store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.snapshots[subjectType+"/"+subjectID]
	out := make([]store.Snapshot, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		snap := src[i]
		snap.Payload = append(json.RawMessage(nil), src[i].Payload...)
		out = append(out, snap)
	}
	return out, nil
}

// Reset clears all snapshots and recorded calls
func (m *MockSnapshotStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = make(map[string][]store.Snapshot)
	m.seq = 0
	m.AppendCalls = make([]AppendCall, 0)
	m.AppendErr = nil
	m.LatestErr = nil
	m.AppendCallback = nil
}

// AddSnapshot adds a snapshot directly for testing
func (m *MockSnapshotStore) AddSnapshot(subjectType, subjectID string, payload json.RawMessage, state string) store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(subjectType, subjectID, payload, state, "")
}
