package convert

import (
	"errors"
	"fmt"
	"reflect"

	"rulemapper/fieldpath"
)

func compile(name string, entries []Entry, opts descriptorOptions) ([]Rule, error) {
	rules := make([]Rule, 0, len(entries))

	for i, e := range entries {
		r, err := parseEntry(e, opts)
		if err != nil {
			return nil, &SpecError{Descriptor: name, Index: i, Reason: err.Error()}
		}

		r.Index = i
		rules = append(rules, r)
	}

	return rules, nil
}

func parseEntry(e Entry, opts descriptorOptions) (Rule, error) {
	if len(e.parts) == 0 || len(e.parts) > 3 {
		return Rule{}, fmt.Errorf("expected 1 to 3 positional elements, got %d", len(e.parts))
	}

	target, err := pathOf(e.parts[0])
	if err != nil {
		return Rule{}, fmt.Errorf("target: %w", err)
	}

	r := Rule{Target: target}
	for _, o := range e.opts {
		o(&r.Options)
	}

	switch len(e.parts) {
	case 1:
		r.Source = target

	case 2:
		second := e.parts[1]

		switch {
		case second == NoSource:
			if !opts.hasNoSourceDefault {
				return Rule{}, errors.New("NoSource needs a default, factory or nested descriptor")
			}

			r.NoSource = true
			r.Value = Default(opts.noSourceDefault)

		case isValueLike(second):
			r.Source = target

			r.Value, err = classify(second, false)
			if err != nil {
				return Rule{}, err
			}

		default:
			r.Source, err = pathOf(second)
			if err != nil {
				return Rule{}, fmt.Errorf("source: %w", err)
			}
		}

	case 3:
		if e.parts[1] == NoSource {
			r.NoSource = true
		} else {
			r.Source, err = pathOf(e.parts[1])
			if err != nil {
				return Rule{}, fmt.Errorf("source: %w", err)
			}
		}

		r.Value, err = classify(e.parts[2], r.NoSource)
		if err != nil {
			return Rule{}, err
		}
	}

	r.Collection = r.Value.collection || r.Options.Collection

	return r, validateRule(r)
}

func validateRule(r Rule) error {
	kind := r.Value.Kind()

	if r.NoSource {
		switch kind {
		case KindCopy:
			return errors.New("NoSource cannot be copied")
		case KindTransform:
			return errors.New("NoSource cannot be transformed")
		}

		if r.Options.Required != nil {
			return errors.New("required needs a source")
		}
	}

	if r.Collection && kind != KindTransform && kind != KindNested {
		return fmt.Errorf("collection needs a transform or nested descriptor, got %s", kind)
	}

	if r.Options.Merge && kind != KindNested {
		return fmt.Errorf("merge needs a nested descriptor, got %s", kind)
	}

	if r.Options.MaxLen < 0 {
		return fmt.Errorf("max length %d is negative", r.Options.MaxLen)
	}

	return nil
}

// classify turns the third element of an entry into a ValueRule.
func classify(v any, noSrc bool) (ValueRule, error) {
	switch x := v.(type) {
	case ValueRule:
		return x, x.err

	case *Descriptor:
		vr := Nested(x)

		return vr, vr.err
	}

	if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
		vr := Func(v)

		return vr, vr.err
	}

	if noSrc {
		return Default(v), nil
	}

	return ValueRule{}, fmt.Errorf("third element must be a transform or a nested descriptor, got %T", v)
}

func isValueLike(v any) bool {
	switch v.(type) {
	case ValueRule, *Descriptor:
		return true
	}

	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

func pathOf(v any) (fieldpath.Path, error) {
	switch p := v.(type) {
	case string:
		return fieldpath.Parse(p)

	case fieldpath.Path:
		if p.IsEmpty() {
			return fieldpath.Path{}, errors.New("empty path")
		}

		return p, nil

	default:
		return fieldpath.Path{}, fmt.Errorf("expected a field path, got %T", v)
	}
}
