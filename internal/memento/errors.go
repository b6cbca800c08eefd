package memento

import "errors"

var (
	// ErrNotRegistered is returned when a subject's type label has no
	// registered descriptor.
	ErrNotRegistered = errors.New("type not registered")

	// ErrDuplicateLabel is returned when registering a second descriptor
	// under an already-taken type label.
	ErrDuplicateLabel = errors.New("type label already registered")

	// ErrDescriptorSealed is returned when declaring members on a
	// descriptor after it has been registered.
	ErrDescriptorSealed = errors.New("descriptor is sealed after registration")

	// ErrMemberIsAttribute is returned when declaring a member whose name
	// is already captured as a plain attribute.
	ErrMemberIsAttribute = errors.New("member name collides with an attribute")

	// ErrUnknownAssociation is returned when declaring a scope on an
	// association that was never declared.
	ErrUnknownAssociation = errors.New("unknown association")

	// ErrNotPlural is returned when a plural-only operation (scope
	// declaration, collection access) targets a singular association.
	ErrNotPlural = errors.New("association is not plural")

	// ErrNotBound is returned when an overlay transition is attempted on
	// an entity that was never bound to a registry and store.
	ErrNotBound = errors.New("entity is not bound to a snapshot store")
)
