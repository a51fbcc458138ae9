// Package structaccess reads and writes Go structs through reflection.
//
// Rule path segments name fields by their `conv` tag, their `json` tag, their
// Go name or, failing those, a normalized spelling of the Go name. Values are
// converted on write: numbers between numeric kinds, named types to and from
// their underlying kind, []any into typed slices and map[string]any into
// maps or structs.
package structaccess

import (
	"fmt"
	"math"
	"reflect"

	"rulemapper/accessor/mapaccess"
	"rulemapper/fieldpath"
)

// Accessor reads any struct (or pointer to struct) and writes *T targets.
type Accessor struct {
	typ reflect.Type
}

// For returns an accessor constructing *T targets. T must be a struct type.
func For[T any]() Accessor {
	a, err := New(reflect.TypeFor[T]())
	if err != nil {
		panic(err)
	}

	return a
}

// New returns an accessor for struct type t.
func New(t reflect.Type) (Accessor, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return Accessor{}, fmt.Errorf("structaccess: %v is not a struct type", t)
	}

	return Accessor{typ: t}, nil
}

func (a Accessor) Kind() string {
	return "struct:" + a.typ.String()
}

// Type returns the struct type targets are built from.
func (a Accessor) Type() reflect.Type {
	return a.typ
}

// Get reads the field named key. Nil pointers resolve to absent, pointers to
// scalars are dereferenced, and maps and lists are read like documents.
func (a Accessor) Get(obj any, key string) (any, bool, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, nil
		}

		rv = rv.Elem()
	}

	if !rv.IsValid() {
		return nil, false, nil
	}

	if rv.Kind() != reflect.Struct {
		return mapaccess.New().Get(rv.Interface(), key)
	}

	f, ok := fieldsOf(rv.Type()).lookup(key)
	if !ok {
		return nil, false, nil
	}

	fv, err := rv.FieldByIndexErr(f.Index)
	if err != nil {
		// nil embedded pointer on the way
		return nil, false, nil //nolint:nilerr
	}

	return valueOf(fv), true, nil
}

func valueOf(fv reflect.Value) any {
	switch fv.Kind() {
	case reflect.Pointer:
		if fv.IsNil() {
			return nil
		}

		if fv.Elem().Kind() != reflect.Struct {
			return fv.Elem().Interface()
		}

	case reflect.Interface, reflect.Map, reflect.Slice:
		if fv.IsNil() {
			return nil
		}
	}

	return fv.Interface()
}

// Set writes value at path on obj, which must be a non-nil pointer to a
// struct. Nil pointer and map intermediates are allocated.
func (a Accessor) Set(obj any, path fieldpath.Path, value any) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("set %s: target must be a non-nil struct pointer, got %T", path, obj)
	}

	if path.IsEmpty() {
		return fmt.Errorf("set: empty path")
	}

	cur := rv.Elem()
	segs := path.Segments()

	for i, seg := range segs {
		f, ok := fieldsOf(cur.Type()).lookup(seg)
		if !ok {
			return fmt.Errorf("set %s: %s has no field %q", path, cur.Type(), seg)
		}

		fv, err := fieldByIndexAlloc(cur, f.Index)
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}

		if i == len(segs)-1 {
			err = assign(fv, value)
			if err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}

			return nil
		}

		rest := fieldpath.FromSegments(segs[i+1:]...)

		next, done, err := descend(fv, rest, value)
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}

		if done {
			return nil
		}

		cur = next
	}

	return nil
}

// descend steps into fv for the remaining path. Maps take the rest of the
// path themselves and report done.
func descend(fv reflect.Value, rest fieldpath.Path, value any) (reflect.Value, bool, error) {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		fv = fv.Elem()
	}

	switch fv.Kind() {
	case reflect.Struct:
		return fv, false, nil

	case reflect.Map:
		if fv.Type() != reflect.TypeFor[map[string]any]() {
			return reflect.Value{}, false, fmt.Errorf("cannot descend into %s", fv.Type())
		}

		if fv.IsNil() {
			fv.Set(reflect.MakeMap(fv.Type()))
		}

		return reflect.Value{}, true, mapaccess.New().Set(fv.Interface(), rest, value)

	default:
		return reflect.Value{}, false, fmt.Errorf("cannot descend into %s", fv.Type())
	}
}

// fieldByIndexAlloc is reflect.Value.FieldByIndex allocating nil embedded pointers.
func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("cannot allocate embedded %s", v.Type())
				}

				v.Set(reflect.New(v.Type().Elem()))
			}

			v = v.Elem()
		}

		v = v.Field(x)
	}

	return v, nil
}

// NewEmpty returns a new *T.
func (a Accessor) NewEmpty() (any, error) {
	return reflect.New(a.typ).Interface(), nil
}

// assign stores value into dst, converting it when the types differ.
func assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))

		return nil
	}

	v := reflect.ValueOf(value)
	dt := dst.Type()

	if v.Type().AssignableTo(dt) {
		dst.Set(v)

		return nil
	}

	switch {
	case dt.Kind() == reflect.Pointer:
		elem := reflect.New(dt.Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}

		dst.Set(elem)

		return nil

	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			dst.Set(reflect.Zero(dt))

			return nil
		}

		return assign(dst, v.Elem().Interface())

	case isNumber(v.Kind()) && isNumber(dt.Kind()):
		return assignNumber(dst, v)

	case v.Kind() == dt.Kind() && v.Type().ConvertibleTo(dt) && v.Kind() != reflect.Slice && v.Kind() != reflect.Map:
		dst.Set(v.Convert(dt))

		return nil

	case dt.Kind() == reflect.Slice && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array):
		out := reflect.MakeSlice(dt, v.Len(), v.Len())
		for i := range v.Len() {
			if err := assign(out.Index(i), v.Index(i).Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}

		dst.Set(out)

		return nil

	case dt.Kind() == reflect.Map && v.Kind() == reflect.Map && dt.Key().Kind() == reflect.String && v.Type().Key().Kind() == reflect.String:
		out := reflect.MakeMapWithSize(dt, v.Len())

		iter := v.MapRange()
		for iter.Next() {
			elem := reflect.New(dt.Elem()).Elem()
			if err := assign(elem, iter.Value().Interface()); err != nil {
				return fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}

			out.SetMapIndex(iter.Key().Convert(dt.Key()), elem)
		}

		dst.Set(out)

		return nil

	case dt.Kind() == reflect.Struct && v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String:
		out := reflect.New(dt).Elem()
		tf := fieldsOf(dt)

		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()

			f, ok := tf.lookup(key)
			if !ok {
				return fmt.Errorf("%s has no field %q", dt, key)
			}

			fv, err := fieldByIndexAlloc(out, f.Index)
			if err != nil {
				return err
			}

			if err := assign(fv, iter.Value().Interface()); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}

		dst.Set(out)

		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, dt)
}

func assignNumber(dst, v reflect.Value) error {
	dt := dst.Type()

	if isFloat(v.Kind()) && !isFloat(dt.Kind()) {
		f := v.Float()
		if f != math.Trunc(f) {
			return fmt.Errorf("cannot assign %v to %s without losing the fraction", f, dt)
		}
	}

	if isUnsigned(dt.Kind()) {
		switch {
		case isSigned(v.Kind()) && v.Int() < 0,
			isFloat(v.Kind()) && v.Float() < 0:
			return fmt.Errorf("cannot assign negative %v to %s", v.Interface(), dt)
		}
	}

	out := v.Convert(dt)

	if back := out.Convert(v.Type()); !back.Equal(v) && !isFloat(dt.Kind()) {
		return fmt.Errorf("%v overflows %s", v.Interface(), dt)
	}

	dst.Set(out)

	return nil
}

func isNumber(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k) || isFloat(k)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
