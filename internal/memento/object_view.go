package memento

import (
	"strings"
	"time"
)

// ObjectView is a read-only projection of one captured document. Field
// access reconstructs typed values from the flat JSON: nested documents
// wrap as views, lists wrap as collections, date-suffixed scalars parse
// to times, and unknown fields yield nil rather than errors so reads stay
// safe across schema drift.
type ObjectView struct {
	doc      Document
	label    string
	registry *Registry
}

// NewObjectView wraps a document. label may be empty; the document's own
// type label is used when present.
func NewObjectView(doc Document, label string, registry *Registry) *ObjectView {
	if label == "" {
		label = doc.TypeLabel()
	}
	return &ObjectView{doc: doc, label: label, registry: registry}
}

// TypeLabel returns the view's originating entity type label.
func (v *ObjectView) TypeLabel() string {
	return v.label
}

// Doc returns the underlying document. Callers must treat it as read-only.
func (v *ObjectView) Doc() Document {
	return v.doc
}

// Has reports whether the document carries field at all.
func (v *ObjectView) Has(field string) bool {
	_, ok := v.doc[field]
	return ok
}

// Get resolves field. Resolution order: already-wrapped views pass
// through, objects wrap as ObjectView, lists wrap as CollectionView with
// their sidecar label, absent "name?" fields answer the truthiness of the
// name attribute, absent declared plural associations come back as empty
// collections, any other absent field is nil, and scalars parse by name
// suffix (timestamps for _at/_time, dates for _on/_date).
func (v *ObjectView) Get(field string) any {
	raw, present := v.doc[field]

	switch wrapped := raw.(type) {
	case *ObjectView:
		return wrapped
	case *CollectionView:
		return wrapped
	}

	if present && raw != nil {
		if doc, ok := asDocument(raw); ok {
			return NewObjectView(doc, v.sidecarLabel(field), v.registry)
		}
		if list, ok := asList(raw); ok {
			return NewCollectionView(field, v.sidecarLabel(field), v.doc, list, v.registry)
		}
		return coerceScalar(field, raw)
	}

	if attrName, isQuery := strings.CutSuffix(field, "?"); isQuery {
		if desc, ok := v.descriptor(); ok && desc.HasAttribute(attrName) {
			return truthy(v.doc[attrName])
		}
	}

	if desc, ok := v.descriptor(); ok {
		if assoc, ok := desc.Association(field); ok && assoc.Plural() {
			return NewCollectionView(field, assoc.ElementType(), v.doc, nil, v.registry)
		}
	}
	return nil
}

// GetString resolves field as a string, or "".
func (v *ObjectView) GetString(field string) string {
	s, _ := v.Get(field).(string)
	return s
}

// GetBool resolves field by truthiness.
func (v *ObjectView) GetBool(field string) bool {
	return truthy(v.Get(field))
}

// GetInt resolves field as an integer, or 0.
func (v *ObjectView) GetInt(field string) int64 {
	n, _ := toInt(v.Get(field))
	return n
}

// GetFloat resolves field as a float, or 0.
func (v *ObjectView) GetFloat(field string) float64 {
	f, _ := toFloat(v.Get(field))
	return f
}

// GetTime resolves field as a timestamp, reporting whether the value
// parsed.
func (v *ObjectView) GetTime(field string) (time.Time, bool) {
	switch t := v.Get(field).(type) {
	case time.Time:
		return t, true
	default:
		return parseTimestamp(t)
	}
}

// Collection resolves field as a collection view. Fields that do not hold
// a list resolve as an empty collection.
func (v *ObjectView) Collection(field string) *CollectionView {
	if cv, ok := v.Get(field).(*CollectionView); ok {
		return cv
	}
	return NewCollectionView(field, v.sidecarLabel(field), v.doc, nil, v.registry)
}

func (v *ObjectView) sidecarLabel(field string) string {
	s, _ := v.doc[typeLabelKey(field)].(string)
	return s
}

func (v *ObjectView) descriptor() (*Descriptor, bool) {
	if v.registry == nil || v.label == "" {
		return nil, false
	}
	return v.registry.Lookup(v.label)
}
