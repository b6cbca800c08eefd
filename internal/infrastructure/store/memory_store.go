package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps snapshots in memory. It backs tests and single-process
// demos; the ordering semantics match the SQL and DynamoDB stores.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]Snapshot // subjectType/subjectID -> snapshots, append order

	// Now supplies creation timestamps and exists so tests can pin them.
	Now func() time.Time
}

var _ SnapshotStoreInterface = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]Snapshot),
		Now:       time.Now,
	}
}

func subjectKey(subjectType, subjectID string) string {
	return subjectType + "/" + subjectID
}

// Append stores a snapshot in memory.
func (ms *MemoryStore) Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*Snapshot, error) {
	snap := Snapshot{
		ID:          uuid.New().String(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		State:       state,
		Payload:     append(json.RawMessage(nil), payload...),
		CreatedAt:   ms.Now(),
		CreatedBy:   createdBy,
	}

	ms.mu.Lock()
	key := subjectKey(subjectType, subjectID)
	ms.snapshots[key] = append(ms.snapshots[key], snap)
	ms.mu.Unlock()

	out := snap
	return &out, nil
}

// Latest returns the most recent snapshot for a subject, or nil.
func (ms *MemoryStore) Latest(ctx context.Context, subjectType, subjectID string) (*Snapshot, error) {
	return ms.latestWhere(subjectType, subjectID, func(Snapshot) bool { return true })
}

// LatestAtState returns the most recent snapshot carrying the given state
// label, or nil.
func (ms *MemoryStore) LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*Snapshot, error) {
	return ms.latestWhere(subjectType, subjectID, func(s Snapshot) bool { return s.State == state })
}

func (ms *MemoryStore) latestWhere(subjectType, subjectID string, match func(Snapshot) bool) (*Snapshot, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var best *Snapshot
	for i := range ms.snapshots[subjectKey(subjectType, subjectID)] {
		s := ms.snapshots[subjectKey(subjectType, subjectID)][i]
		if !match(s) {
			continue
		}
		if best == nil || best.Before(&s) {
			cp := s
			best = &cp
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Payload = append(json.RawMessage(nil), best.Payload...)
	return best, nil
}

// List returns every snapshot for a subject, newest first.
func (ms *MemoryStore) List(ctx context.Context, subjectType, subjectID string) ([]Snapshot, error) {
	ms.mu.RLock()
	stored := ms.snapshots[subjectKey(subjectType, subjectID)]
	out := make([]Snapshot, len(stored))
	for i, s := range stored {
		s.Payload = append(json.RawMessage(nil), s.Payload...)
		out[i] = s
	}
	ms.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[j].Before(&out[i]) })
	return out, nil
}
