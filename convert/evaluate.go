package convert

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"unicode/utf8"
)

// evaluate computes the value rule r writes. The bool result is false when
// the write is skipped (filtered out, or dropped by the nil and blank policy).
func (c *conversion) evaluate(d *Descriptor, r *Rule, src, dest any) (any, bool, error) {
	v, found, err := c.lookup(d, r, src)
	if err != nil {
		return nil, false, c.fail(d, r, nil, err)
	}

	var (
		val   any
		write = true
	)

	if found {
		val, write, err = c.fromFound(d, r, v, dest)
	} else {
		val, err = c.fromAbsent(d, r, dest)
	}

	if err != nil || !write {
		return nil, false, err
	}

	return c.finish(d, r, val)
}

func (c *conversion) lookup(d *Descriptor, r *Rule, src any) (any, bool, error) {
	if r.NoSource {
		return nil, false, nil
	}

	v, found, err := resolve(d.src, src, r.Source)
	if err != nil || found {
		return v, found, err
	}

	v, found = c.cfg.vars[r.Source.String()]

	return v, found, nil
}

func (c *conversion) fromAbsent(d *Descriptor, r *Rule, dest any) (any, error) {
	switch r.Value.kind {
	case KindStaticDefault:
		return r.Value.value, nil

	case KindFactoryDefault:
		v, err := safely(r.Value.factory)
		if err != nil {
			return nil, c.fail(d, r, ErrTransform, err)
		}

		return v, nil

	case KindNested:
		if r.Collection {
			return []any{}, nil
		}

		v, err := c.nestedOne(d, r, nil, dest)
		if err != nil {
			var kind error
			if errors.Is(err, ErrMissingRequiredSource) {
				kind = ErrMissingRequiredSource
			}

			return nil, c.fail(d, r, kind, err)
		}

		return v, nil

	default:
		return nil, c.fail(d, r, ErrMissingRequiredSource, nil)
	}
}

func (c *conversion) fromFound(d *Descriptor, r *Rule, v any, dest any) (any, bool, error) {
	if pred := r.Options.Required; pred != nil {
		ok, err := test(pred, v)
		if err != nil {
			return nil, false, c.fail(d, r, ErrTransform, err)
		}

		if !ok {
			return nil, false, c.fail(d, r, ErrRequirement, nil)
		}
	}

	switch r.Value.kind {
	case KindStaticDefault, KindFactoryDefault:
		if v == nil || v == "" {
			out, err := c.fromAbsent(d, r, dest)

			return out, true, err
		}
	}

	if r.Options.Pluralize && v != nil {
		if _, ok := asSlice(v); !ok {
			v = []any{v}
		}
	}

	if r.Collection {
		return c.many(d, r, v, dest)
	}

	v, keep, err := c.filter(d, r, v)
	if err != nil || !keep {
		return nil, false, err
	}

	return c.single(d, r, v, dest)
}

// single converts a value that is not mapped element by element.
func (c *conversion) single(d *Descriptor, r *Rule, v any, dest any) (any, bool, error) {
	var (
		out any
		err error
	)

	switch r.Value.kind {
	case KindTransform:
		if v == nil && !r.Options.WantsNil {
			return nil, true, nil
		}

		out, err = safely(func() (any, error) { return r.Value.transform(v) })
		if errors.Is(err, errSkip) {
			return nil, false, nil
		}

		if err != nil {
			return nil, false, c.fail(d, r, ErrTransform, err)
		}

	case KindNested:
		if v == nil {
			return nil, true, nil
		}

		out, err = c.nestedOne(d, r, v, dest)
		if err != nil {
			return nil, false, c.fail(d, r, nil, err)
		}

	default:
		out = v
	}

	return out, true, nil
}

// many converts the elements of a collection rule's value.
func (c *conversion) many(d *Descriptor, r *Rule, v any, dest any) (any, bool, error) {
	if r.Value.kind == KindTransform {
		if v == nil && !r.Options.WantsNil {
			return nil, true, nil
		}

		return c.each(d, r, v, ErrTransform, func(_ int, el any) (any, error) {
			return safely(func() (any, error) { return r.Value.transform(el) })
		})
	}

	if v == nil {
		return nil, true, nil
	}

	nd, err := c.nestedDescriptor(r)
	if err != nil {
		return nil, false, c.fail(d, r, nil, err)
	}

	var existing []any

	if r.Options.Merge {
		held, found, err := resolve(d.dst, dest, r.Target)
		if err != nil {
			return nil, false, c.fail(d, r, nil, err)
		}

		if found {
			existing, _ = asSlice(held)
		}
	}

	return c.each(d, r, v, nil, func(i int, el any) (any, error) {
		if i < len(existing) && existing[i] != nil {
			return c.child().convertInto(nd, el, detach(existing[i]), false)
		}

		return c.child().convert(nd, el, false)
	})
}

// each applies fn to every source element of the collection v that passes
// the filter. Elements are converted independently and keep the source
// order; fn gets the element's index in the source.
func (c *conversion) each(d *Descriptor, r *Rule, v any, kind error, fn func(i int, el any) (any, error)) (any, bool, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, false, c.fail(d, r, nil, fmt.Errorf("collection rule needs a list, got %T", v))
	}

	out := make([]any, 0, len(items))

	for i, el := range items {
		if pred := r.Options.Filter; pred != nil {
			keep, err := test(pred, el)
			if err != nil {
				return nil, false, c.fail(d, r, ErrTransform, fmt.Errorf("element %d: filter: %w", i, err))
			}

			if !keep {
				continue
			}
		}

		res, err := fn(i, el)
		if errors.Is(err, errSkip) {
			continue
		}

		if err != nil {
			return nil, false, c.fail(d, r, kind, fmt.Errorf("element %d: %w", i, err))
		}

		out = append(out, res)
	}

	return out, true, nil
}

// filter drops source values the rule's filter rejects. Lists are filtered
// element by element, other values are kept or skipped whole.
func (c *conversion) filter(d *Descriptor, r *Rule, v any) (any, bool, error) {
	pred := r.Options.Filter
	if pred == nil {
		return v, true, nil
	}

	items, ok := asSlice(v)
	if !ok {
		keep, err := test(pred, v)
		if err != nil {
			return nil, false, c.fail(d, r, ErrTransform, fmt.Errorf("filter: %w", err))
		}

		return v, keep, nil
	}

	out := make([]any, 0, len(items))

	for _, el := range items {
		keep, err := test(pred, el)
		if err != nil {
			return nil, false, c.fail(d, r, ErrTransform, fmt.Errorf("filter: %w", err))
		}

		if keep {
			out = append(out, el)
		}
	}

	return out, true, nil
}

func (c *conversion) nestedDescriptor(r *Rule) (*Descriptor, error) {
	nd := r.Value.nested()
	if nd == nil {
		return nil, fmt.Errorf("nested descriptor %q is not defined", r.Value.name)
	}

	return nd, nil
}

// nestedOne converts v (nil for an absent source) with the nested descriptor.
// With Merge the conversion updates the value the target already holds.
func (c *conversion) nestedOne(d *Descriptor, r *Rule, v any, dest any) (any, error) {
	nd, err := c.nestedDescriptor(r)
	if err != nil {
		return nil, err
	}

	if r.Options.Merge {
		existing, found, err := resolve(d.dst, dest, r.Target)
		if err != nil {
			return nil, err
		}

		if found && existing != nil {
			return c.child().convertInto(nd, v, detach(existing), false)
		}
	}

	return c.child().convert(nd, v, false)
}

// finish applies the descriptor's nil and blank policy, washers, max length
// and sorting to a computed value.
func (c *conversion) finish(d *Descriptor, r *Rule, v any) (any, bool, error) {
	o := d.opts

	if v == nil {
		if !o.nilsToBlank {
			return nil, o.includeNils, nil
		}

		v = ""
	}

	if s, ok := v.(string); ok && s == "" && !o.includeEmptyStrings {
		return nil, false, nil
	}

	if !r.Options.SkipWash {
		for _, w := range o.washers {
			if !w.category.Matches(v) {
				continue
			}

			cur := v

			washed, err := safely(func() (any, error) { return w.fn(cur), nil })
			if err != nil {
				return nil, false, c.fail(d, r, ErrTransform, fmt.Errorf("washer: %w", err))
			}

			v = washed
		}
	}

	if n := r.Options.MaxLen; n > 0 {
		v = truncate(v, n)
	}

	if less := sortFunc(r.Options); less != nil {
		items, ok := asSlice(v)
		if !ok {
			return nil, false, c.fail(d, r, nil, fmt.Errorf("sort needs a list, got %T", v))
		}

		sorted := slices.Clone(items)
		slices.SortStableFunc(sorted, func(a, b any) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			default:
				return 0
			}
		})

		v = sorted
	}

	return v, true, nil
}

// detach returns a shallow copy of generic containers, so that merging into
// a value copied from the source leaves the source alone.
func detach(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return maps.Clone(x)
	case []any:
		return slices.Clone(x)
	default:
		return v
	}
}

func sortFunc(o FieldOptions) func(a, b any) bool {
	switch {
	case o.Less != nil:
		return o.Less
	case o.SortNatural:
		return NaturalLess
	default:
		return nil
	}
}

// NaturalLess orders numbers numerically before strings, strings
// lexically, and anything else by its printed form.
func NaturalLess(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)

	switch {
	case aNum && bNum:
		return fa < fb
	case aNum:
		return true
	case bNum:
		return false
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)

	switch {
	case aStr && bStr:
		return as < bs
	case aStr:
		return true
	case bStr:
		return false
	}

	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func truncate(v any, n int) any {
	if s, ok := v.(string); ok {
		if utf8.RuneCountInString(s) <= n {
			return s
		}

		return string([]rune(s)[:n])
	}

	if items, ok := asSlice(v); ok && len(items) > n {
		return slices.Clone(items[:n])
	}

	return v
}

// asSlice returns the elements of slices and arrays. Byte slices and
// strings are not collections.
func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}

	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, true
}

func test(pred func(any) bool, v any) (bool, error) {
	out, err := safely(func() (any, error) { return pred(v), nil })
	if err != nil {
		return false, err
	}

	return out.(bool), nil //nolint:forcetypeassert
}
