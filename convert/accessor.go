package convert

import "rulemapper/fieldpath"

// Accessor reads and writes one object representation (maps, structs, XML
// elements, table rows, fixed-width lines). The engine never looks at objects
// directly; every read, write and construction goes through an Accessor.
//
// Implementations must be safe for concurrent use and keep no per-object
// state outside the objects they are handed.
type Accessor interface {
	// Kind names the representation, e.g. "map" or "xml:order".
	Kind() string
	// Get resolves a single path segment against obj. The bool result is
	// false when the segment is absent; a present nil value is reported as
	// (nil, true, nil).
	Get(obj any, key string) (any, bool, error)
	// Set writes value at path on obj, creating intermediate structure for
	// dotted paths.
	Set(obj any, path fieldpath.Path, value any) error
	// NewEmpty constructs a fresh target object.
	NewEmpty() (any, error)
}
