// Package component defines component descriptors, the primary key for
// per-entity columns in a chunk.
package component

import "strings"

// Name identifies the physical column type of a component, e.g.
// "Position3D" or "Color". Two distinct descriptors with the same Name
// are distinct columns when their Archetype or Field differ.
type Name string

// Descriptor is the full key of a component column: an optional
// archetype (logical schema group, e.g. "Points3D"), an optional
// archetype field name (role within that archetype, e.g. "positions"),
// and the component name. Descriptor is a plain comparable value and
// may be used directly as a map key.
type Descriptor struct {
	Archetype string // optional; empty if the component is not archetype-bound
	Field     string // optional; empty if the component has no archetype role
	Name      Name
}

// NewDescriptor builds a fully-qualified descriptor.
func NewDescriptor(archetype, field string, name Name) Descriptor {
	return Descriptor{Archetype: archetype, Field: field, Name: name}
}

// Bare builds a descriptor carrying only a component name, with no
// archetype association.
func Bare(name Name) Descriptor {
	return Descriptor{Name: name}
}

// String renders the descriptor as "archetype:field#name", omitting
// absent parts, e.g. "Points3D:positions#Position3D" or just
// "Position3D" for a bare descriptor.
func (d Descriptor) String() string {
	var b strings.Builder
	if d.Archetype != "" {
		b.WriteString(d.Archetype)
		if d.Field != "" {
			b.WriteByte(':')
			b.WriteString(d.Field)
		}
		b.WriteByte('#')
	}
	b.WriteString(string(d.Name))
	return b.String()
}

// IsArchetyped reports whether this descriptor belongs to an archetype.
func (d Descriptor) IsArchetyped() bool {
	return d.Archetype != ""
}
