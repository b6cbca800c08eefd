// Package memento captures database-backed entities into immutable JSON
// snapshots and lets a live entity present any prior snapshot's values in
// place of its current ones.
//
// An entity type takes part by embedding Remembers, implementing Subject,
// and registering a Descriptor that declares which members are captured.
// The Serializer walks the declared members into a flat Document; the
// overlay (Lock / ViewState / Unlock) swaps reads over to a stored
// Document; ObjectView and CollectionView reconstruct typed access from
// the flat JSON.
package memento

// Subject is implemented by entities that can be captured into snapshots.
type Subject interface {
	GetID() string
	GetType() string
}

// StateProvider is implemented by subjects whose lifecycle state should
// label the snapshots taken of them. CaptureAndCommit consults it; plain
// Commit takes the label explicitly.
type StateProvider interface {
	SnapshotState() string
}

// overlayed is implemented by *Remembers so the serializer can re-serialize
// the overlaid document instead of the live row when an entity is locked or
// viewing a historical state.
type overlayed interface {
	overlayDocument() (Document, bool)
}
