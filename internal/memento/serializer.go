package memento

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/example/memento/internal/infrastructure/store"
	"github.com/example/memento/internal/metrics"
)

// Serializer captures subjects into Documents and commits them to the
// snapshot store. Capture and Commit are separate so callers can inspect
// or defer; CaptureAndCommit is the synchronous composition.
type Serializer struct {
	registry *Registry
	store    store.SnapshotStoreInterface
}

func NewSerializer(registry *Registry, snapshots store.SnapshotStoreInterface) *Serializer {
	return &Serializer{
		registry: registry,
		store:    snapshots,
	}
}

// Capture walks the subject's declared members into one Document:
// overlay-resolved attributes, the type label, computed members, and for
// each association the recursively captured elements, a type-label
// sidecar, and every declared scope as a flattened pre-filtered
// sub-collection. Any member error aborts the whole capture; a partial
// snapshot is worse than a dropped one.
func (s *Serializer) Capture(subject Subject) (Document, error) {
	return capture(s.registry, subject, true)
}

// Commit appends a captured document as an immutable snapshot. Snapshots
// are never updated.
func (s *Serializer) Commit(ctx context.Context, subject Subject, doc Document, state, actor string) (*store.Snapshot, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", subject.GetType(), err)
	}
	snap, err := s.store.Append(ctx, subject.GetType(), subject.GetID(), payload, state, actor)
	if err != nil {
		return nil, fmt.Errorf("append %s snapshot: %w", subject.GetType(), err)
	}
	return snap, nil
}

// CaptureAndCommit is the synchronous capture path. The snapshot's state
// label comes from the subject's StateProvider, when implemented.
func (s *Serializer) CaptureAndCommit(ctx context.Context, subject Subject, actor string) (*store.Snapshot, error) {
	doc, err := s.Capture(subject)
	if err != nil {
		metrics.CaptureFailuresTotal.WithLabelValues(subject.GetType()).Inc()
		return nil, err
	}

	var state string
	if sp, ok := subject.(StateProvider); ok {
		state = sp.SnapshotState()
	}

	snap, err := s.Commit(ctx, subject, doc, state, actor)
	if err != nil {
		metrics.CaptureFailuresTotal.WithLabelValues(subject.GetType()).Inc()
		return nil, err
	}
	metrics.CapturesTotal.WithLabelValues(subject.GetType()).Inc()
	return snap, nil
}

// capture implements the serialization walk. full distinguishes a
// top-level capture from the nested capture of association elements:
// nested elements carry attributes, label and computed members only, so
// mutually associated types cannot recurse forever.
func capture(registry *Registry, subject Subject, full bool) (Document, error) {
	desc, ok := registry.LookupFor(subject)
	if !ok {
		return nil, fmt.Errorf("capture %s: %w", subject.GetType(), ErrNotRegistered)
	}

	// When the subject is overlaid, re-serialize the overlaid document's
	// values instead of the live row. Capturing a locked entity must
	// reproduce the state it presents, not the state it hides.
	var overlaid Document
	if ov, ok := subject.(overlayed); ok {
		overlaid, _ = ov.overlayDocument()
	}

	out := Document{}

	attrsDoc := make(Document, len(desc.attrs))
	for _, attr := range desc.attrs {
		if overlaid != nil {
			attrsDoc[attr.name] = overlaid[attr.name]
			continue
		}
		attrsDoc[attr.name] = normalizeValue(fieldValue(subject, attr.index))
	}
	MergeInto(out, attrsDoc)
	out[TypeKey] = desc.label

	for _, name := range desc.memberOrder {
		var value any
		if overlaid != nil {
			value = overlaid[name]
		} else {
			raw, err := desc.members[name](subject)
			if err != nil {
				return nil, fmt.Errorf("capture member %s.%s: %w", desc.label, name, err)
			}
			value = normalizeValue(raw)
		}
		MergeInto(out, Document{name: value})
	}

	if !full {
		return out, nil
	}

	for _, name := range desc.assocOrder {
		part, err := captureAssociation(registry, subject, desc, desc.assocs[name], overlaid)
		if err != nil {
			return nil, err
		}
		MergeInto(out, part)
	}
	return out, nil
}

func captureAssociation(registry *Registry, subject Subject, desc *Descriptor, assoc *Association, overlaid Document) (Document, error) {
	part := Document{}

	if overlaid != nil {
		// Scope sub-collections are part of the historical state; copy
		// them through rather than re-running the predicates.
		part[assoc.name] = overlaid[assoc.name]
		part[typeLabelKey(assoc.name)] = assoc.elementType
		for _, scopeName := range assoc.scopeOrder {
			key := scopeKey(assoc.name, scopeName)
			part[key] = overlaid[key]
			part[typeLabelKey(key)] = assoc.elementType
		}
		return part, nil
	}

	elements, err := assoc.fetch(subject)
	if err != nil {
		return nil, fmt.Errorf("capture association %s.%s: %w", desc.label, assoc.name, err)
	}

	if !assoc.Plural() {
		if len(elements) == 0 || elements[0] == nil {
			part[assoc.name] = nil
		} else {
			elemDoc, err := capture(registry, elements[0], false)
			if err != nil {
				return nil, err
			}
			part[assoc.name] = elemDoc
		}
		part[typeLabelKey(assoc.name)] = assoc.elementType
		return part, nil
	}

	list := make([]any, 0, len(elements))
	docs := make([]Document, 0, len(elements))
	for _, element := range elements {
		elemDoc, err := capture(registry, element, false)
		if err != nil {
			return nil, err
		}
		list = append(list, elemDoc)
		docs = append(docs, elemDoc)
	}
	part[assoc.name] = list
	part[typeLabelKey(assoc.name)] = assoc.elementType

	for _, scopeName := range assoc.scopeOrder {
		scope := assoc.scopes[scopeName]
		filtered := make([]any, 0, len(docs))
		for i, elemDoc := range docs {
			matched, err := scope.Matches(elemDoc)
			if err != nil {
				return nil, fmt.Errorf("capture scope %s.%s: %w", desc.label, scopeKey(assoc.name, scopeName), err)
			}
			if matched {
				filtered = append(filtered, list[i])
			}
		}
		key := scopeKey(assoc.name, scopeName)
		part[key] = filtered
		part[typeLabelKey(key)] = assoc.elementType
	}
	return part, nil
}

// fieldValue reads a struct field from the live subject by index path.
func fieldValue(subject Subject, index []int) any {
	rv := reflect.ValueOf(subject)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fv := rv.FieldByIndex(index)
	if !fv.IsValid() || !fv.CanInterface() {
		return nil
	}
	return fv.Interface()
}
