// Package fieldpath parses the dotted field paths used by conversion rules.
//
// Paths are opaque to the engine: each segment is handed to an accessor, which
// decides what it means for its representation (map key, struct field, XML
// child tag, column name, layout field). A few spellings are conventional:
//
//   - "Name"            a single field
//   - "Address.Street"  a nested field
//   - "Items.0.SKU"     a list index (digits) followed by a field
//   - "link.@href"      an XML attribute
//   - "self"            the whole source object
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SelfName is the path that refers to the object being read itself.
const SelfName = "self"

// Self is the parsed form of SelfName.
var Self = Path{segments: []string{SelfName}}

// Path is a parsed, non-empty field path. The zero value is the empty path.
type Path struct {
	segments []string
}

// Parse parses a dotted field path.
func Parse(path string) (Path, error) {
	if path == "" {
		return Path{}, errors.New("empty path")
	}

	parts := strings.Split(path, ".")

	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("invalid path %q: empty segment", path)
		}

		if strings.TrimSpace(part) != part {
			return Path{}, fmt.Errorf("invalid path %q: segment %q has surrounding spaces", path, part)
		}
	}

	return Path{segments: parts}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(path string) Path {
	p, err := Parse(path)
	if err != nil {
		panic(err)
	}

	return p
}

// FromSegments builds a path from already split segments.
func FromSegments(segments ...string) Path {
	return Path{segments: append([]string(nil), segments...)}
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return strings.Join(p.segments, ".")
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// IsEmpty returns true if the path has no segments.
func (p Path) IsEmpty() bool {
	return len(p.segments) == 0
}

// IsSimple returns true for single segment paths.
func (p Path) IsSimple() bool {
	return len(p.segments) == 1
}

// IsSelf returns true if the path refers to the whole object.
func (p Path) IsSelf() bool {
	return len(p.segments) == 1 && p.segments[0] == SelfName
}

// Head returns the first segment.
func (p Path) Head() string {
	if len(p.segments) == 0 {
		return ""
	}

	return p.segments[0]
}

// Tail returns the path without its first segment.
func (p Path) Tail() Path {
	if len(p.segments) <= 1 {
		return Path{}
	}

	return Path{segments: p.segments[1:]}
}

// Last returns the final segment.
func (p Path) Last() string {
	if len(p.segments) == 0 {
		return ""
	}

	return p.segments[len(p.segments)-1]
}

// Parent returns the path without its final segment.
func (p Path) Parent() Path {
	if len(p.segments) <= 1 {
		return Path{}
	}

	return Path{segments: p.segments[:len(p.segments)-1]}
}

// Child returns a new path with name appended.
func (p Path) Child(name string) Path {
	segs := make([]string, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)

	return Path{segments: append(segs, name)}
}

// Equals returns true if two paths have the same segments.
func (p Path) Equals(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}

	for i, seg := range p.segments {
		if seg != other.segments[i] {
			return false
		}
	}

	return true
}

// Index reports whether a segment is a list index and returns it.
func Index(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}

	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}

	return n, true
}

// Attr reports whether a segment names an attribute ("@name") and returns the name.
func Attr(segment string) (string, bool) {
	if len(segment) < 2 || segment[0] != '@' {
		return "", false
	}

	return segment[1:], true
}
