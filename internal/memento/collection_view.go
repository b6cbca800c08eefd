package memento

import (
	"fmt"
	"sort"
)

// Direction orders OrderBy results.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// CollectionView is a read-only projection of one captured association
// list. It behaves like a small queryable list: scope filtering, summing,
// ordering, all without touching the store. Filtering intersects against
// the pre-filtered scope sub-collections captured on the parent document,
// so chained filters compose exactly as they were materialized.
type CollectionView struct {
	name     string
	label    string
	parent   Document
	elements []any
	registry *Registry
}

// NewCollectionView wraps an element list. name is the member name on the
// parent document (scope lookups need it), label the element type label.
func NewCollectionView(name, label string, parent Document, elements []any, registry *Registry) *CollectionView {
	return &CollectionView{
		name:     name,
		label:    label,
		parent:   parent,
		elements: elements,
		registry: registry,
	}
}

// Name returns the member name this collection was resolved from.
func (c *CollectionView) Name() string {
	return c.name
}

// Label returns the element type label.
func (c *CollectionView) Label() string {
	return c.label
}

// Size returns the number of elements.
func (c *CollectionView) Size() int {
	return len(c.elements)
}

// Empty reports whether the collection has no elements.
func (c *CollectionView) Empty() bool {
	return len(c.elements) == 0
}

// At returns the element at index i as an ObjectView, or nil when i is out
// of range or the element is not a document.
func (c *CollectionView) At(i int) *ObjectView {
	if i < 0 || i >= len(c.elements) {
		return nil
	}
	doc, ok := asDocument(c.elements[i])
	if !ok {
		return nil
	}
	return NewObjectView(doc, c.label, c.registry)
}

// Docs returns the element documents in order.
func (c *CollectionView) Docs() []Document {
	docs := make([]Document, 0, len(c.elements))
	for _, elem := range c.elements {
		if doc, ok := asDocument(elem); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// IDs returns the element ids in order, skipping elements without one.
func (c *CollectionView) IDs() []string {
	ids := make([]string, 0, len(c.elements))
	for _, elem := range c.elements {
		if id, ok := elementID(elem); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// FilterByScope returns the elements also present in the named scope's
// materialized sub-collection on the parent document. The intersection is
// by element id against the current element set, so chained filters
// compose and never exceed the parent collection. An unknown scope yields
// an empty collection.
func (c *CollectionView) FilterByScope(scope string) *CollectionView {
	allowed := make(map[string]bool)
	if c.parent != nil {
		scoped, _ := asList(c.parent[scopeKey(c.name, scope)])
		for _, elem := range scoped {
			if id, ok := elementID(elem); ok {
				allowed[id] = true
			}
		}
	}

	filtered := make([]any, 0, len(c.elements))
	for _, elem := range c.elements {
		if id, ok := elementID(elem); ok && allowed[id] {
			filtered = append(filtered, elem)
		}
	}
	return NewCollectionView(c.name, c.label, c.parent, filtered, c.registry)
}

// Sum adds the numeric coercion of field across elements. Missing and
// non-numeric values count as 0.
func (c *CollectionView) Sum(field string) float64 {
	var total float64
	for _, elem := range c.elements {
		doc, ok := asDocument(elem)
		if !ok {
			continue
		}
		if n, ok := toFloat(doc[field]); ok {
			total += n
		}
	}
	return total
}

// OrderBy returns a copy of the collection stably sorted by field.
// Date-suffixed fields compare as parsed times, numeric values as
// numbers, everything else as strings. The receiver is never mutated.
func (c *CollectionView) OrderBy(field string, dir Direction) *CollectionView {
	ordered := append([]any(nil), c.elements...)
	sort.SliceStable(ordered, func(i, j int) bool {
		cmp := compareField(ordered[i], ordered[j], field)
		if dir == Descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return NewCollectionView(c.name, c.label, c.parent, ordered, c.registry)
}

func compareField(a, b any, field string) int {
	va := fieldOf(a, field)
	vb := fieldOf(b, field)

	if hasTimestampSuffix(field) || hasDateSuffix(field) {
		ta, okA := parseDate(va)
		tb, okB := parseDate(vb)
		if okA && okB {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}

	na, okA := toFloat(va)
	nb, okB := toFloat(vb)
	if okA && okB {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}

	sa := fmt.Sprint(va)
	sb := fmt.Sprint(vb)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func fieldOf(elem any, field string) any {
	doc, ok := asDocument(elem)
	if !ok {
		return nil
	}
	return doc[field]
}
