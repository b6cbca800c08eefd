package memento

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/memento/internal/infrastructure/store"
	"github.com/example/memento/internal/metrics"
)

type overlayMode int

const (
	modeLive overlayMode = iota
	modeLocked
	modeAtState
)

// Remembers gives an embedding entity the snapshot overlay: while live,
// accessors read the entity's own fields and getters; once locked or
// viewing a historical state, they read the selected snapshot's document
// instead. Resolved members are cached until the next transition.
//
// A single instance's transitions and reads are not safe for concurrent
// use; callers serialize access to one entity instance.
type Remembers struct {
	self     Subject
	registry *Registry
	store    store.SnapshotStoreInterface

	mode     overlayMode
	state    string
	snapshot *store.Snapshot
	view     *ObjectView
	cache    map[string]any
}

// Bind wires the embedding entity to its registry and snapshot store.
// Entities must be bound before any overlay transition.
func (r *Remembers) Bind(self Subject, registry *Registry, snapshots store.SnapshotStoreInterface) {
	r.self = self
	r.registry = registry
	r.store = snapshots
}

// Remembering reports whether the entity currently presents a snapshot.
func (r *Remembers) Remembering() bool {
	return r.mode != modeLive
}

// Locked reports whether the entity is locked to its most recent snapshot.
func (r *Remembers) Locked() bool {
	return r.mode == modeLocked
}

// ActiveState returns the historical state label being viewed, or "" when
// live or locked.
func (r *Remembers) ActiveState() string {
	if r.mode != modeAtState {
		return ""
	}
	return r.state
}

// Snapshot returns the currently overlaid snapshot, or nil when live.
func (r *Remembers) Snapshot() *store.Snapshot {
	return r.snapshot
}

// Lock overlays the most recent snapshot regardless of its state label.
// It reports false, leaving the entity in its current mode, when no
// snapshot exists. Locking an already-locked entity is a no-op.
func (r *Remembers) Lock(ctx context.Context) bool {
	if r.self == nil || r.store == nil {
		return false
	}
	if r.mode == modeLocked {
		return true
	}

	snap, err := r.store.Latest(ctx, r.self.GetType(), r.self.GetID())
	if err != nil {
		log.Printf("[Memento] lock %s/%s: %v", r.self.GetType(), r.self.GetID(), err)
		return false
	}
	if snap == nil {
		return false
	}
	if !r.adopt(snap, modeLocked, "") {
		return false
	}
	metrics.OverlayTransitionsTotal.WithLabelValues("lock").Inc()
	return true
}

// ViewState overlays the most recent snapshot whose state label equals
// state. It reports false, leaving the entity in its current mode, when
// no such snapshot exists.
func (r *Remembers) ViewState(ctx context.Context, state string) bool {
	if r.self == nil || r.store == nil {
		return false
	}

	snap, err := r.store.LatestAtState(ctx, r.self.GetType(), r.self.GetID(), state)
	if err != nil {
		log.Printf("[Memento] view state %s/%s at %q: %v", r.self.GetType(), r.self.GetID(), state, err)
		return false
	}
	if snap == nil {
		return false
	}
	if !r.adopt(snap, modeAtState, state) {
		return false
	}
	metrics.OverlayTransitionsTotal.WithLabelValues("view_state").Inc()
	return true
}

// Unlock returns the entity to live reads and discards the overlay cache.
func (r *Remembers) Unlock() {
	if r.mode == modeLive {
		return
	}
	r.mode = modeLive
	r.state = ""
	r.snapshot = nil
	r.view = nil
	r.cache = nil
	metrics.OverlayTransitionsTotal.WithLabelValues("unlock").Inc()
}

// adopt installs a snapshot as the active overlay and clears the
// per-member cache.
func (r *Remembers) adopt(snap *store.Snapshot, mode overlayMode, state string) bool {
	var doc Document
	if err := json.Unmarshal(snap.Payload, &doc); err != nil {
		log.Printf("[Memento] unmarshal snapshot %s payload: %v", snap.ID, err)
		return false
	}

	label := doc.TypeLabel()
	if label == "" {
		label = r.self.GetType()
	}

	r.mode = mode
	r.state = state
	r.snapshot = snap
	r.view = NewObjectView(doc, label, r.registry)
	r.cache = nil
	return true
}

// resolve serves name from the overlay, caching the result for the
// overlay's lifetime. The second result is false while live.
func (r *Remembers) resolve(name string) (any, bool) {
	if r.mode == modeLive || r.view == nil {
		return nil, false
	}
	if v, ok := r.cache[name]; ok {
		return v, true
	}
	v := r.view.Get(name)
	if r.cache == nil {
		r.cache = make(map[string]any)
	}
	r.cache[name] = v
	return v, true
}

// overlayDocument exposes the overlaid document to the serializer.
func (r *Remembers) overlayDocument() (Document, bool) {
	if r.mode == modeLive || r.view == nil {
		return nil, false
	}
	return r.view.Doc(), true
}

// Attr resolves a member by name: the overlaid document's value when
// remembering, otherwise the live field, getter, or association.
func (r *Remembers) Attr(name string) any {
	if v, ok := r.resolve(name); ok {
		return v
	}
	return r.liveValue(name)
}

// StringAttr resolves name as a string, or "".
func (r *Remembers) StringAttr(name string) string {
	s, _ := r.Attr(name).(string)
	return s
}

// BoolAttr resolves name by truthiness.
func (r *Remembers) BoolAttr(name string) bool {
	return truthy(r.Attr(name))
}

// IntAttr resolves name as an integer, or 0.
func (r *Remembers) IntAttr(name string) int64 {
	n, _ := toInt(r.Attr(name))
	return n
}

// FloatAttr resolves name as a float, or 0.
func (r *Remembers) FloatAttr(name string) float64 {
	f, _ := toFloat(r.Attr(name))
	return f
}

// TimeAttr resolves name as a timestamp, reporting whether it parsed.
func (r *Remembers) TimeAttr(name string) (time.Time, bool) {
	switch v := r.Attr(name).(type) {
	case time.Time:
		return v, true
	default:
		return parseDate(v)
	}
}

// Collection resolves a plural association as a CollectionView. When
// remembering, the view comes from the overlaid document; live, the
// association is captured on the fly so scope filtering behaves
// identically in both modes.
func (r *Remembers) Collection(name string) (*CollectionView, error) {
	if r.mode != modeLive && r.view != nil {
		if cv, ok := r.resolve(name); ok {
			if view, ok := cv.(*CollectionView); ok {
				return view, nil
			}
		}
		return NewCollectionView(name, r.elementLabel(name), r.view.Doc(), nil, r.registry), nil
	}
	return r.liveCollection(name)
}

// liveValue reads a member from the live entity through its descriptor.
func (r *Remembers) liveValue(name string) any {
	if r.self == nil || r.registry == nil {
		return nil
	}
	desc, ok := r.registry.LookupFor(r.self)
	if !ok {
		return nil
	}

	// Live values are normalized to their JSON shapes and coerced the
	// same way a snapshot read would be, so callers see identical types
	// in both modes.
	if i, ok := desc.attrIndex[name]; ok {
		return coerceScalar(name, normalizeValue(fieldValue(r.self, desc.attrs[i].index)))
	}
	if fn, ok := desc.members[name]; ok {
		v, err := fn(r.self)
		if err != nil {
			log.Printf("[Memento] member %s.%s: %v", desc.label, name, err)
			return nil
		}
		return coerceScalar(name, normalizeValue(v))
	}
	if assoc, ok := desc.assocs[name]; ok {
		if assoc.Plural() {
			cv, err := r.liveCollection(name)
			if err != nil {
				log.Printf("[Memento] collection %s.%s: %v", desc.label, name, err)
				return nil
			}
			return cv
		}
		elements, err := assoc.fetch(r.self)
		if err != nil {
			log.Printf("[Memento] association %s.%s: %v", desc.label, name, err)
			return nil
		}
		if len(elements) == 0 || elements[0] == nil {
			return nil
		}
		doc, err := capture(r.registry, elements[0], false)
		if err != nil {
			log.Printf("[Memento] association %s.%s: %v", desc.label, name, err)
			return nil
		}
		return NewObjectView(doc, assoc.elementType, r.registry)
	}
	if attrName, isQuery := strings.CutSuffix(name, "?"); isQuery {
		if i, ok := desc.attrIndex[attrName]; ok {
			return truthy(normalizeValue(fieldValue(r.self, desc.attrs[i].index)))
		}
	}
	return nil
}

// liveCollection captures a plural association from the live entity into
// a transient parent document carrying the list and its scope
// sub-collections.
func (r *Remembers) liveCollection(name string) (*CollectionView, error) {
	if r.self == nil || r.registry == nil {
		return nil, ErrNotBound
	}
	desc, ok := r.registry.LookupFor(r.self)
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, ErrNotRegistered)
	}
	assoc, ok := desc.Association(name)
	if !ok {
		return nil, fmt.Errorf("collection %s.%s: %w", desc.label, name, ErrUnknownAssociation)
	}
	if !assoc.Plural() {
		return nil, fmt.Errorf("collection %s.%s: %w", desc.label, name, ErrNotPlural)
	}

	parent, err := captureAssociation(r.registry, r.self, desc, assoc, nil)
	if err != nil {
		return nil, err
	}
	elements, _ := asList(parent[name])
	return NewCollectionView(name, assoc.ElementType(), parent, elements, r.registry), nil
}

func (r *Remembers) elementLabel(name string) string {
	if r.registry == nil || r.self == nil {
		return ""
	}
	if desc, ok := r.registry.LookupFor(r.self); ok {
		if assoc, ok := desc.Association(name); ok {
			return assoc.ElementType()
		}
	}
	return ""
}
