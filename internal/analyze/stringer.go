package analyze

import (
	"strings"
)

// TypePath builds a readable path string for a field within a type.
// Examples:
//   - "Shipment" for a simple struct
//   - "Shipment.lines" for a nested field
//   - "Shipment.lines[]" for a slice field
//   - "Shipment.lines[].qty" for a field within slice elements
type TypePath struct {
	parts []string
}

// NewTypePath creates a new TypePath from a root type name.
func NewTypePath(root string) *TypePath {
	return &TypePath{
		parts: []string{root},
	}
}

// Field appends a field name to the path.
func (p *TypePath) Field(name string) *TypePath {
	return &TypePath{
		parts: append(append([]string{}, p.parts...), name),
	}
}

// Slice marks the last segment as a list.
func (p *TypePath) Slice() *TypePath {
	if len(p.parts) == 0 {
		return &TypePath{parts: []string{"[]"}}
	}

	newParts := make([]string, len(p.parts))
	copy(newParts, p.parts)
	newParts[len(newParts)-1] += "[]"

	return &TypePath{parts: newParts}
}

// String returns the full path string.
func (p *TypePath) String() string {
	return strings.Join(p.parts, ".")
}

// TypeString returns a short Go-like spelling of t for messages.
func TypeString(t *TypeInfo) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind {
	case TypeKindPointer:
		return "*" + TypeString(t.ElemType)
	case TypeKindSlice:
		return "[]" + TypeString(t.ElemType)
	case TypeKindArray:
		return "[...]" + TypeString(t.ElemType)
	case TypeKindStruct, TypeKindAlias:
		if t.IsNamed() {
			return t.ID.Name
		}
	case TypeKindExternal:
		return t.ID.String()
	}

	if t.GoType != nil {
		return t.GoType.String()
	}

	return t.Kind.String()
}
