package convert

import (
	"errors"
	"fmt"
)

// ValueKind tells how a rule computes the value it writes.
type ValueKind int

const (
	KindCopy ValueKind = iota
	KindStaticDefault
	KindFactoryDefault
	KindTransform
	KindNested
)

func (k ValueKind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindStaticDefault:
		return "default"
	case KindFactoryDefault:
		return "factory"
	case KindTransform:
		return "transform"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// TransformFunc computes a target value from a resolved source value.
type TransformFunc func(v any) (any, error)

// FactoryFunc builds a fresh default value on every call.
type FactoryFunc func() (any, error)

// ValueRule is the third element of a rule entry. Build it with Default,
// Factory, Transform, Func, Nested, NestedMany or NestedFunc.
type ValueRule struct {
	kind       ValueKind
	name       string
	value      any
	factory    FactoryFunc
	transform  TransformFunc
	nested     func() *Descriptor
	collection bool
	err        error
}

// Default writes v when the source is absent (or found nil / empty string).
// The value is shared by every conversion and should be immutable.
func Default(v any) ValueRule {
	return ValueRule{kind: KindStaticDefault, value: v}
}

// Factory writes fn() when the source is absent. fn is invoked on every
// conversion, so mutable defaults are never shared.
func Factory(fn FactoryFunc) ValueRule {
	if fn == nil {
		return ValueRule{kind: KindFactoryDefault, err: fmt.Errorf("nil factory")}
	}

	return ValueRule{kind: KindFactoryDefault, factory: fn}
}

// Transform writes fn(v) for the resolved source value v.
func Transform(fn TransformFunc) ValueRule {
	if fn == nil {
		return ValueRule{kind: KindTransform, err: fmt.Errorf("nil transform")}
	}

	return ValueRule{kind: KindTransform, transform: fn}
}

// Nested converts the source value with another descriptor.
func Nested(d *Descriptor) ValueRule {
	if d == nil {
		return ValueRule{kind: KindNested, err: fmt.Errorf("nil nested descriptor")}
	}

	return ValueRule{kind: KindNested, name: d.name, nested: func() *Descriptor { return d }}
}

// NestedMany converts every element of the source collection with d.
func NestedMany(d *Descriptor) ValueRule {
	v := Nested(d)
	v.collection = true

	return v
}

// NestedFunc defers the descriptor lookup to conversion time, which lets a
// descriptor nest itself or one declared later.
func NestedFunc(fn func() *Descriptor) ValueRule {
	if fn == nil {
		return ValueRule{kind: KindNested, err: fmt.Errorf("nil nested descriptor func")}
	}

	return ValueRule{kind: KindNested, nested: fn}
}

// Named returns a copy of v labelled with name, used in logs and dumps.
func (v ValueRule) Named(name string) ValueRule {
	v.name = name

	return v
}

// Many returns a copy of v applied per element of a collection.
func (v ValueRule) Many() ValueRule {
	v.collection = true

	return v
}

func (v ValueRule) Kind() ValueKind { return v.kind }

func (v ValueRule) Name() string { return v.name }

// Err returns the construction error of v, if any. Invalid value rules are
// otherwise reported when the descriptor holding them is compiled.
func (v ValueRule) Err() error { return v.err }

// DefaultValue returns the static default of a KindStaticDefault rule.
func (v ValueRule) DefaultValue() any { return v.value }

func (v ValueRule) String() string {
	if v.name == "" {
		return v.kind.String()
	}

	return v.kind.String() + " " + v.name
}

// Apply runs a transform or factory rule outside of a conversion. Factories
// ignore v. A typed function reporting ok=false yields nil.
func Apply(vr ValueRule, v any) (any, error) {
	if vr.err != nil {
		return nil, vr.err
	}

	var (
		out any
		err error
	)

	switch vr.kind {
	case KindTransform:
		out, err = vr.transform(v)
	case KindFactoryDefault:
		out, err = vr.factory()
	case KindStaticDefault:
		return vr.value, nil
	default:
		return nil, fmt.Errorf("cannot apply %s rule", vr.kind)
	}

	if errors.Is(err, errSkip) {
		return nil, nil
	}

	return out, err
}
