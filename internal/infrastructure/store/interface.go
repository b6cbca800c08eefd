package store

import (
	"context"
	"encoding/json"
)

// SnapshotStoreInterface defines the interface for snapshot stores.
//
// Append is the only write; implementations never update or delete rows.
// Latest and LatestAtState return (nil, nil) when no matching snapshot
// exists. "Latest" means CreatedAt descending with snapshot ID descending
// as the tie-break.
type SnapshotStoreInterface interface {
	Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*Snapshot, error)
	Latest(ctx context.Context, subjectType, subjectID string) (*Snapshot, error)
	LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*Snapshot, error)
	List(ctx context.Context, subjectType, subjectID string) ([]Snapshot, error)
}
