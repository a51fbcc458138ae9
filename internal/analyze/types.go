package analyze

import (
	"errors"
	"fmt"
	"go/types"
	"reflect"
	"strings"

	"rulemapper/internal/common"
)

var (
	// ErrTypeNotFound is returned when a type is not among the loaded packages.
	ErrTypeNotFound = errors.New("type not found")
	// ErrNotStruct is returned when a type exists but is not a struct.
	ErrNotStruct = errors.New("type is not a struct")
)

// TypeID uniquely identifies a type by its package path and name.
type TypeID struct {
	PkgPath string // e.g., "rulemapper/examples/orders"
	Name    string // e.g., "StoreOrder"
}

// ParseTypeID splits a qualified name such as "example.com/shop.Order"
// at its last dot.
func ParseTypeID(qualified string) (TypeID, error) {
	i := strings.LastIndex(qualified, ".")
	if i <= 0 || i == len(qualified)-1 || strings.HasSuffix(qualified[:i], "/") || strings.Contains(qualified[i+1:], "/") {
		return TypeID{}, fmt.Errorf("invalid type %q: expected <import path>.<Type>", qualified)
	}

	return TypeID{PkgPath: qualified[:i], Name: qualified[i+1:]}, nil
}

// String returns a human-readable representation of the TypeID.
func (t TypeID) String() string {
	if t.PkgPath == "" {
		return t.Name
	}

	return t.PkgPath + "." + t.Name
}

// TypeKind represents the kind of a type.
type TypeKind int

const (
	TypeKindUnknown  TypeKind = iota
	TypeKindBasic             // int, string, bool, etc.
	TypeKindStruct            // struct type
	TypeKindPointer           // pointer to another type
	TypeKindSlice             // slice of another type
	TypeKindArray             // array of another type
	TypeKindMap               // map type, read as a nested record
	TypeKindAlias             // named type wrapping another
	TypeKindExternal          // external/opaque type (e.g., time.Time)
)

// String returns a human-readable representation of the TypeKind.
func (k TypeKind) String() string {
	switch k {
	case TypeKindBasic:
		return "basic"
	case TypeKindStruct:
		return "struct"
	case TypeKindPointer:
		return "pointer"
	case TypeKindSlice:
		return "slice"
	case TypeKindArray:
		return "array"
	case TypeKindMap:
		return "map"
	case TypeKindAlias:
		return "alias"
	case TypeKindExternal:
		return "external"
	default:
		return common.UnknownStr
	}
}

// TypeInfo describes a Go type in the type graph.
type TypeInfo struct {
	ID         TypeID      // Unique identifier (empty for unnamed types like *T or []T)
	Kind       TypeKind    // Kind of type
	Underlying *TypeInfo   // For named types, the underlying type
	ElemType   *TypeInfo   // For pointers, slices and arrays, the element type
	Fields     []FieldInfo // For structs, the visible fields including promoted ones
	GoType     types.Type  // The original go/types.Type
}

// IsNamed returns true if this type has a name (TypeID is set).
func (t *TypeInfo) IsNamed() bool {
	return t.ID.Name != ""
}

// Deref strips pointers and named wrappers down to the type a record
// value actually holds.
func (t *TypeInfo) Deref() *TypeInfo {
	for t != nil {
		switch {
		case t.Kind == TypeKindPointer && t.ElemType != nil:
			t = t.ElemType
		case t.Kind == TypeKindAlias && t.Underlying != nil:
			t = t.Underlying
		default:
			return t
		}
	}

	return nil
}

// IsList reports whether values of t read as lists.
func (t *TypeInfo) IsList() bool {
	d := t.Deref()
	return d != nil && (d.Kind == TypeKindSlice || d.Kind == TypeKindArray)
}

// Field returns the field a rule path segment resolves to.
func (t *TypeInfo) Field(key string) (*FieldInfo, bool) {
	for i := range t.Fields {
		if t.Fields[i].Key() == key {
			return &t.Fields[i], true
		}
	}

	return nil, false
}

// Keys lists the rule path names of t's fields in declaration order.
func (t *TypeInfo) Keys() []string {
	keys := make([]string, 0, len(t.Fields))
	for i := range t.Fields {
		keys = append(keys, t.Fields[i].Key())
	}

	return keys
}

// FieldInfo describes a struct field.
type FieldInfo struct {
	Name     string            // Go field name
	Type     *TypeInfo         // Field type
	Tag      reflect.StructTag // Raw struct tag
	Embedded bool              // Whether the field was promoted from an embedded struct
	Index    []int             // Index sequence from the outer struct
}

// TagName returns the name part of the tag key, or "" if absent.
func (f *FieldInfo) TagName(key string) string {
	tag := f.Tag.Get(key)
	if tag == "" || tag == "-" {
		return ""
	}

	name, _, _ := strings.Cut(tag, ",")

	return name
}

// JSONName returns the JSON tag name if present, otherwise the field name.
func (f *FieldInfo) JSONName() string {
	if name := f.TagName("json"); name != "" {
		return name
	}

	return f.Name
}

// Key is the name a rule path uses for the field: the conv tag, then the
// json tag, then the Go name.
func (f *FieldInfo) Key() string {
	if name := f.TagName("conv"); name != "" {
		return name
	}

	return f.JSONName()
}

// Hidden reports whether the field opted out of rule paths.
func (f *FieldInfo) Hidden() bool {
	return f.Tag.Get("conv") == "-"
}

// TypeGraph holds all analyzed types from loaded packages.
type TypeGraph struct {
	// Types maps TypeID to TypeInfo for all named types.
	Types map[TypeID]*TypeInfo
	// Packages maps package paths to their package info.
	Packages map[string]*PackageInfo
}

// NewTypeGraph creates a new empty TypeGraph.
func NewTypeGraph() *TypeGraph {
	return &TypeGraph{
		Types:    make(map[TypeID]*TypeInfo),
		Packages: make(map[string]*PackageInfo),
	}
}

// GetType returns the TypeInfo for a given TypeID, or nil if not found.
func (g *TypeGraph) GetType(id TypeID) *TypeInfo {
	return g.Types[id]
}

// PackageInfo holds information about a loaded package.
type PackageInfo struct {
	Path  string   // Import path
	Name  string   // Package name
	Types []TypeID // Named types defined in this package
}
