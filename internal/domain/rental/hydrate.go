package rental

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/memento/internal/infrastructure/store"
	"github.com/example/memento/internal/memento"
)

// Hydrator rebuilds live agreements from their most recent snapshot. The
// standalone capture worker has no row store, so this is its capture
// path: snapshot in, agreement out, re-capture. Each request rebuilds
// its own instance; nothing is shared across requests.
type Hydrator struct {
	registry   *memento.Registry
	serializer *memento.Serializer
	snapshots  store.SnapshotStoreInterface
}

func NewHydrator(registry *memento.Registry, snapshots store.SnapshotStoreInterface) *Hydrator {
	return &Hydrator{
		registry:   registry,
		serializer: memento.NewSerializer(registry, snapshots),
		snapshots:  snapshots,
	}
}

// LoadSubject resolves an agreement from its latest snapshot. It returns
// (nil, nil) when the agreement has never been captured.
func (h *Hydrator) LoadSubject(ctx context.Context, agreementID string) (memento.Subject, error) {
	snap, err := h.snapshots.Latest(ctx, AgreementType, agreementID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	a, err := agreementFromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	a.Bind(a, h.registry, h.snapshots)
	return a, nil
}

// CaptureSubject serves deferred capture requests: it rehydrates the
// agreement and appends a fresh capture of it. A never-captured agreement
// reports (nil, nil).
func (h *Hydrator) CaptureSubject(ctx context.Context, agreementID, requestedBy string) (*store.Snapshot, error) {
	subject, err := h.LoadSubject(ctx, agreementID)
	if err != nil || subject == nil {
		return nil, err
	}
	return h.serializer.CaptureAndCommit(ctx, subject, requestedBy)
}

// agreementFromSnapshot unmarshals a snapshot document back into an
// agreement. Attribute keys line up with the struct's json tags; the
// nested customer and items documents carry their element types' tags.
func agreementFromSnapshot(snap *store.Snapshot) (*Agreement, error) {
	var a Agreement
	if err := json.Unmarshal(snap.Payload, &a); err != nil {
		return nil, fmt.Errorf("unmarshal agreement snapshot %s: %w", snap.ID, err)
	}

	var assocs struct {
		Customer *Customer   `json:"customer"`
		Items    []*LineItem `json:"items"`
	}
	if err := json.Unmarshal(snap.Payload, &assocs); err != nil {
		return nil, fmt.Errorf("unmarshal agreement snapshot %s associations: %w", snap.ID, err)
	}
	a.Customer = assocs.Customer
	a.Items = assocs.Items
	return &a, nil
}
