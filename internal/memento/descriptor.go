package memento

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Cardinality distinguishes singular from plural associations.
type Cardinality int

const (
	Singular Cardinality = iota
	Plural
)

// MemberFunc computes a declared member's value from the live entity.
type MemberFunc func(entity any) (any, error)

// AssocFunc fetches an association's related entities from the live
// entity. Singular associations return at most one element.
type AssocFunc func(entity any) ([]Subject, error)

// attrField is one automatically memoized attribute: an exported,
// json-tagged struct field on the registered prototype.
type attrField struct {
	name  string
	index []int
}

// Association is a declared related-entity member with optional named
// scopes (plural only).
type Association struct {
	name        string
	elementType string
	cardinality Cardinality
	fetch       AssocFunc
	scopes      map[string]*Scope
	scopeOrder  []string
}

// Plural reports whether the association holds a list of elements.
func (a *Association) Plural() bool {
	return a.cardinality == Plural
}

// ElementType returns the association's element type label.
func (a *Association) ElementType() string {
	return a.elementType
}

// ScopeNames returns the association's declared scope names in
// declaration order.
func (a *Association) ScopeNames() []string {
	return append([]string(nil), a.scopeOrder...)
}

// Descriptor declares which members of one entity type are captured into
// snapshots. Attributes are collected automatically from the prototype's
// json-tagged fields (minus a deny-list); computed members, associations
// and scopes are declared explicitly. A descriptor is mutable until it is
// registered, immutable afterwards.
type Descriptor struct {
	label       string
	attrs       []attrField
	attrIndex   map[string]int
	members     map[string]MemberFunc
	memberOrder []string
	assocs      map[string]*Association
	assocOrder  []string
	sealed      bool
}

// defaultDenyList holds attribute names never captured. The lock flag is
// operational state, not entity state: capturing it would freeze an
// entity as locked inside its own snapshot.
var defaultDenyList = []string{"locked"}

// NewDescriptor builds a descriptor for the entity type of prototype,
// labeled label. Attributes are the prototype's exported json-tagged
// fields except the default deny-list and any extra denied names.
func NewDescriptor(label string, prototype any, deny ...string) *Descriptor {
	denied := make(map[string]bool, len(defaultDenyList)+len(deny))
	for _, name := range defaultDenyList {
		denied[name] = true
	}
	for _, name := range deny {
		denied[name] = true
	}

	d := &Descriptor{
		label:     label,
		attrIndex: make(map[string]int),
		members:   make(map[string]MemberFunc),
		assocs:    make(map[string]*Association),
	}

	for _, field := range attrFieldsOf(reflect.TypeOf(prototype), denied) {
		d.attrIndex[field.name] = len(d.attrs)
		d.attrs = append(d.attrs, field)
	}
	return d
}

// attrFieldsOf extracts the automatically memoized attributes from a
// prototype struct type.
func attrFieldsOf(t reflect.Type, denied map[string]bool) []attrField {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var fields []attrField
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || f.PkgPath != "" {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := tag
		if i := strings.Index(tag, ","); i >= 0 {
			name = tag[:i]
		}
		if name == "" || denied[name] {
			continue
		}
		fields = append(fields, attrField{name: name, index: f.Index})
	}
	return fields
}

// Label returns the descriptor's type label.
func (d *Descriptor) Label() string {
	return d.label
}

// AttributeNames returns the automatically memoized attribute names.
func (d *Descriptor) AttributeNames() []string {
	names := make([]string, len(d.attrs))
	for i, a := range d.attrs {
		names[i] = a.name
	}
	return names
}

// HasAttribute reports whether name is an automatically memoized attribute.
func (d *Descriptor) HasAttribute(name string) bool {
	_, ok := d.attrIndex[name]
	return ok
}

// Association returns the declared association named name, if any.
func (d *Descriptor) Association(name string) (*Association, bool) {
	a, ok := d.assocs[name]
	return a, ok
}

// Memoize declares a computed member. Declaring the same name twice is a
// no-op; declaring a name that is already an attribute is rejected,
// because attributes are captured implicitly.
func (d *Descriptor) Memoize(name string, fn MemberFunc) error {
	if d.sealed {
		return fmt.Errorf("memoize %s.%s: %w", d.label, name, ErrDescriptorSealed)
	}
	if d.HasAttribute(name) {
		return fmt.Errorf("memoize %s.%s: %w", d.label, name, ErrMemberIsAttribute)
	}
	if d.declared(name) {
		return nil
	}
	d.members[name] = fn
	d.memberOrder = append(d.memberOrder, name)
	return nil
}

// MemoizeAssociation declares an association member whose elements carry
// the elementType label. Same duplicate and collision rules as Memoize.
func (d *Descriptor) MemoizeAssociation(name, elementType string, cardinality Cardinality, fetch AssocFunc) error {
	if d.sealed {
		return fmt.Errorf("memoize association %s.%s: %w", d.label, name, ErrDescriptorSealed)
	}
	if d.HasAttribute(name) {
		return fmt.Errorf("memoize association %s.%s: %w", d.label, name, ErrMemberIsAttribute)
	}
	if d.declared(name) {
		return nil
	}
	d.assocs[name] = &Association{
		name:        name,
		elementType: elementType,
		cardinality: cardinality,
		fetch:       fetch,
		scopes:      make(map[string]*Scope),
	}
	d.assocOrder = append(d.assocOrder, name)
	return nil
}

// MemoizeScope declares a named scope on an already-declared plural
// association. Declaring the same scope twice is a no-op.
func (d *Descriptor) MemoizeScope(association, name string, scope *Scope) error {
	if d.sealed {
		return fmt.Errorf("memoize scope %s.%s_%s: %w", d.label, association, name, ErrDescriptorSealed)
	}
	assoc, ok := d.assocs[association]
	if !ok {
		return fmt.Errorf("memoize scope %s.%s_%s: %w", d.label, association, name, ErrUnknownAssociation)
	}
	if !assoc.Plural() {
		return fmt.Errorf("memoize scope %s.%s_%s: %w", d.label, association, name, ErrNotPlural)
	}
	if _, exists := assoc.scopes[name]; exists {
		return nil
	}
	assoc.scopes[name] = scope
	assoc.scopeOrder = append(assoc.scopeOrder, name)
	return nil
}

func (d *Descriptor) declared(name string) bool {
	if _, ok := d.members[name]; ok {
		return true
	}
	_, ok := d.assocs[name]
	return ok
}

// Registry holds the registered descriptors by type label. Registration
// seals a descriptor; lookups afterwards are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byLabel map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byLabel: make(map[string]*Descriptor)}
}

// Register adds a descriptor and seals it against further declarations.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byLabel[d.label]; exists {
		return fmt.Errorf("register %s: %w", d.label, ErrDuplicateLabel)
	}
	d.sealed = true
	r.byLabel[d.label] = d
	return nil
}

// Lookup returns the descriptor registered under label.
func (r *Registry) Lookup(label string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byLabel[label]
	return d, ok
}

// LookupFor returns the descriptor for a subject's type label.
func (r *Registry) LookupFor(subject Subject) (*Descriptor, bool) {
	return r.Lookup(subject.GetType())
}
