// Package mapaccess reads and writes generic documents: string-keyed maps and
// lists, as produced by JSON and YAML decoders.
package mapaccess

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"rulemapper/fieldpath"
)

// Kind is the representation name of map documents.
const Kind = "map"

// Accessor reads any string-keyed map, slice or array, and writes
// map[string]any documents.
type Accessor struct{}

func New() Accessor {
	return Accessor{}
}

func (Accessor) Kind() string { return Kind }

// Get looks key up in a map, or uses it as an index into a list. Values that
// have no fields resolve to absent.
func (Accessor) Get(obj any, key string) (any, bool, error) {
	switch o := obj.(type) {
	case map[string]any:
		v, ok := o[key]

		return v, ok, nil

	case []any:
		i, ok := fieldpath.Index(key)
		if !ok || i >= len(o) {
			return nil, false, nil
		}

		return o[i], true, nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, nil
		}

		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false, nil
		}

		return v.Interface(), true, nil

	case reflect.Slice, reflect.Array:
		i, ok := fieldpath.Index(key)
		if !ok || i >= rv.Len() {
			return nil, false, nil
		}

		return rv.Index(i).Interface(), true, nil

	default:
		return nil, false, nil
	}
}

// Set writes value at path, creating intermediate maps. Existing lists can be
// addressed by index but are never grown. Containers passed through on the
// way down are replaced by shallow copies, so values copied from a source
// document are never written into.
func (Accessor) Set(obj any, path fieldpath.Path, value any) error {
	if path.IsEmpty() {
		return fmt.Errorf("set: empty path")
	}

	cur := obj
	segs := path.Segments()

	for i, seg := range segs[:len(segs)-1] {
		next, err := child(cur, seg, fieldpath.FromSegments(segs[:i+1]...))
		if err != nil {
			return err
		}

		cur = next
	}

	last := segs[len(segs)-1]

	switch o := cur.(type) {
	case map[string]any:
		o[last] = value

		return nil

	case []any:
		idx, ok := fieldpath.Index(last)
		if !ok || idx >= len(o) {
			return fmt.Errorf("set %s: index %q out of range", path, last)
		}

		o[idx] = value

		return nil

	default:
		return fmt.Errorf("set %s: cannot write into %T", path, cur)
	}
}

// child returns a private copy of the container under seg, creating a map
// when missing.
func child(cur any, seg string, at fieldpath.Path) (any, error) {
	switch o := cur.(type) {
	case map[string]any:
		next, ok := o[seg]
		if !ok || next == nil {
			m := map[string]any{}
			o[seg] = m

			return m, nil
		}

		owned, ok := detach(next)
		if !ok {
			return nil, fmt.Errorf("set: %s holds %T, not a map", at, next)
		}

		o[seg] = owned

		return owned, nil

	case []any:
		idx, ok := fieldpath.Index(seg)
		if !ok || idx >= len(o) {
			return nil, fmt.Errorf("set: %s: index out of range", at)
		}

		if o[idx] == nil {
			o[idx] = map[string]any{}

			return o[idx], nil
		}

		owned, ok := detach(o[idx])
		if !ok {
			return nil, fmt.Errorf("set: %s holds %T, not a map", at, o[idx])
		}

		o[idx] = owned

		return owned, nil

	default:
		return nil, fmt.Errorf("set: %s: cannot descend into %T", at, cur)
	}
}

func detach(v any) (any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return maps.Clone(x), true
	case []any:
		return slices.Clone(x), true
	default:
		return nil, false
	}
}

func (Accessor) NewEmpty() (any, error) {
	return map[string]any{}, nil
}
