package memento

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// TypeKey is the document key holding the captured entity's type label.
// Member-level sidecars append it to the member name ("items__type__").
const TypeKey = "__type__"

// Document is one serialized snapshot payload: member names mapped to
// scalars, nested documents, or lists of documents, plus type-label
// sidecar keys. A Document is self-contained; it can be interpreted long
// after the live schema has drifted.
type Document map[string]any

// typeLabelKey returns the sidecar key carrying member's element type label.
func typeLabelKey(member string) string {
	return member + TypeKey
}

// scopeKey returns the flattened key holding a scope's pre-filtered
// sub-collection of member.
func scopeKey(member, scope string) string {
	return member + "_" + scope
}

// TypeLabel returns the document's own type label, if present.
func (d Document) TypeLabel() string {
	s, _ := d[TypeKey].(string)
	return s
}

// MergeInto merges src into dst additively. Scalar and document values
// overwrite, list values union by element id, and a non-list value never
// replaces a populated list. This is what keeps one association's capture
// from truncating a sibling association's already-merged list.
func MergeInto(dst, src Document) {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}

		existingList, existingIsList := asList(existing)
		incomingList, incomingIsList := asList(value)

		switch {
		case existingIsList && incomingIsList:
			dst[key] = mergeLists(existingList, incomingList)
		case existingIsList && len(existingList) > 0:
			// keep the populated list
		default:
			dst[key] = value
		}
	}
}

// mergeLists unions two element lists, keeping dst's order and appending
// src elements whose id is not yet present. Elements without an id are
// deduplicated by deep equality.
func mergeLists(dst, src []any) []any {
	out := make([]any, 0, len(dst)+len(src))
	seen := make(map[string]bool, len(dst))

	out = append(out, dst...)
	for _, elem := range dst {
		if id, ok := elementID(elem); ok {
			seen[id] = true
		}
	}

	for _, elem := range src {
		if id, ok := elementID(elem); ok {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, elem)
			continue
		}
		if containsEqual(out, elem) {
			continue
		}
		out = append(out, elem)
	}
	return out
}

func containsEqual(list []any, v any) bool {
	for _, elem := range list {
		if reflect.DeepEqual(elem, v) {
			return true
		}
	}
	return false
}

// elementID extracts a comparable id from a list element document.
func elementID(elem any) (string, bool) {
	doc, ok := asDocument(elem)
	if !ok {
		return "", false
	}
	id, ok := doc["id"]
	if !ok || id == nil {
		return "", false
	}
	return fmt.Sprint(id), true
}

// asDocument converts a raw JSON value to a Document when it is an object.
func asDocument(v any) (Document, bool) {
	switch d := v.(type) {
	case Document:
		return d, true
	case map[string]any:
		return Document(d), true
	}
	return nil, false
}

// asList converts a raw JSON value to an element list.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []Document:
		out := make([]any, len(l))
		for i, d := range l {
			out[i] = d
		}
		return out, true
	}
	return nil, false
}

// normalizeValue rewrites a captured Go value into the shape it would have
// after a JSON round-trip: numbers become float64, times become RFC3339
// strings, structs become map documents. Fresh and store-loaded documents
// then resolve identically under the overlay.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, string, float64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339Nano)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case Document:
		return normalizeDocument(val)
	case map[string]any:
		return normalizeDocument(Document(val))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	default:
		return normalizeThroughJSON(v)
	}
}

func normalizeDocument(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeThroughJSON handles the long tail (structs, named types, typed
// slices) by a marshal/unmarshal round-trip.
func normalizeThroughJSON(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}
