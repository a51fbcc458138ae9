// Package convert builds target objects from source objects by applying an
// ordered list of declared field-mapping rules.
//
// A Descriptor pairs a source and a target Accessor with its rule entries.
// The entries are compiled into a canonical rule table once, on first use
// (or eagerly by Declare), and the table is read-only afterwards, so a
// Descriptor may be shared by concurrent conversions.
//
//	order := convert.MustDeclare("Order", mapaccess.New(), mapaccess.New(), []convert.Entry{
//		convert.E("id"),
//		convert.E("customer", "buyer.name"),
//		convert.E("status", convert.NoSource, convert.Default("new")),
//		convert.E("lines", "items", convert.NestedMany(line)),
//	})
//
//	out, err := convert.Convert(order, src)
//
// Conversions fail fast: the first failing rule aborts the conversion and no
// partially built target is returned.
package convert

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rulemapper/fieldpath"
)

// maxDepth bounds nested conversions, which otherwise only the data bounds.
const maxDepth = 256

// Descriptor is an immutable, named conversion shape.
type Descriptor struct {
	name    string
	src     Accessor
	dst     Accessor
	entries []Entry
	opts    descriptorOptions

	once  sync.Once
	rules []Rule
	err   error
}

// Define creates a descriptor. The entries are compiled on first use.
func Define(name string, src, dst Accessor, entries []Entry, opts ...DescriptorOption) *Descriptor {
	o := defaultDescriptorOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Descriptor{
		name:    name,
		src:     src,
		dst:     dst,
		entries: append([]Entry(nil), entries...),
		opts:    o,
	}
}

// Declare is like Define but compiles the entries immediately, so malformed
// rules are reported at declaration time.
func Declare(name string, src, dst Accessor, entries []Entry, opts ...DescriptorOption) (*Descriptor, error) {
	d := Define(name, src, dst, entries, opts...)

	_, err := d.table()
	if err != nil {
		return nil, err
	}

	return d, nil
}

// MustDeclare is like Declare but panics on error.
func MustDeclare(name string, src, dst Accessor, entries []Entry, opts ...DescriptorOption) *Descriptor {
	d, err := Declare(name, src, dst, entries, opts...)
	if err != nil {
		panic(err)
	}

	return d
}

// Extend derives a descriptor whose rules are d's rules followed by entries.
// Options are inherited and may be adjusted by opts. When parent and child
// target the same path the child's rule runs later and wins.
func (d *Descriptor) Extend(name string, entries []Entry, opts ...DescriptorOption) *Descriptor {
	o := d.opts.clone()
	for _, opt := range opts {
		opt(&o)
	}

	all := make([]Entry, 0, len(d.entries)+len(entries))
	all = append(all, d.entries...)
	all = append(all, entries...)

	return &Descriptor{
		name:    name,
		src:     d.src,
		dst:     d.dst,
		entries: all,
		opts:    o,
	}
}

func (d *Descriptor) Name() string { return d.name }

func (d *Descriptor) Source() Accessor { return d.src }

func (d *Descriptor) Target() Accessor { return d.dst }

// Rules returns a copy of the canonical rule table.
func (d *Descriptor) Rules() ([]Rule, error) {
	rules, err := d.table()
	if err != nil {
		return nil, err
	}

	return append([]Rule(nil), rules...), nil
}

func (d *Descriptor) table() ([]Rule, error) {
	d.once.Do(func() {
		if d.src == nil || d.dst == nil {
			d.err = fmt.Errorf("descriptor %s: %w: source and target accessors are required", d.name, ErrInvalidRuleSpec)

			return
		}

		d.rules, d.err = compile(d.name, d.entries, d.opts)
	})

	return d.rules, d.err
}

// Convert builds a new target object from src.
func Convert(d *Descriptor, src any, opts ...CallOption) (any, error) {
	c := newConversion(opts)

	return c.top(d, func() (any, error) {
		return c.convert(d, src, true)
	})
}

// ConvertInto applies the rules of d onto an existing target object. On
// failure dest may hold the writes of the rules that ran before the error.
func ConvertInto(d *Descriptor, src, dest any, opts ...CallOption) (any, error) {
	c := newConversion(opts)

	return c.top(d, func() (any, error) {
		if dest == nil {
			return nil, fmt.Errorf("convert %s: nil destination", d.name)
		}

		return c.convertInto(d, src, dest, true)
	})
}

// As converts src and asserts the result to T. A *T result is dereferenced
// when T is not a pointer type.
func As[T any](d *Descriptor, src any, opts ...CallOption) (T, error) {
	var zero T

	out, err := Convert(d, src, opts...)
	if err != nil {
		return zero, err
	}

	switch v := out.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}

	return zero, fmt.Errorf("convert %s: result is %T, not %T", d.name, out, zero)
}

type conversion struct {
	cfg   *callConfig
	depth int
}

func newConversion(opts []CallOption) *conversion {
	cfg := &callConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}

	return &conversion{cfg: cfg}
}

func (c *conversion) child() *conversion {
	return &conversion{cfg: c.cfg, depth: c.depth + 1}
}

func (c *conversion) top(d *Descriptor, run func() (any, error)) (any, error) {
	start := time.Now()

	out, err := run()
	elapsed := time.Since(start)

	if c.cfg.observer != nil {
		c.cfg.observer.ObserveConversion(d.name, elapsed, err)
	}

	if err != nil {
		c.cfg.logger.Debug().Str("descriptor", d.name).Dur("elapsed", elapsed).Err(err).Msg("conversion failed")

		return nil, err
	}

	c.cfg.logger.Debug().Str("descriptor", d.name).Dur("elapsed", elapsed).Msg("converted")

	return out, nil
}

func (c *conversion) convert(d *Descriptor, src any, top bool) (any, error) {
	if d.opts.copyOnly {
		return nil, fmt.Errorf("convert %s: %w", d.name, ErrCopyOnly)
	}

	if d.dst == nil {
		return nil, fmt.Errorf("descriptor %s: %w: target accessor is required", d.name, ErrInvalidRuleSpec)
	}

	dest, err := d.dst.NewEmpty()
	if err != nil {
		return nil, fmt.Errorf("convert %s: new %s target: %w", d.name, d.dst.Kind(), err)
	}

	return c.convertInto(d, src, dest, top)
}

func (c *conversion) convertInto(d *Descriptor, src, dest any, top bool) (any, error) {
	rules, err := d.table()
	if err != nil {
		return nil, err
	}

	if c.depth > maxDepth {
		return nil, fmt.Errorf("convert %s: %w (%d)", d.name, ErrRecursionLimit, maxDepth)
	}

	var overrides map[string]any
	if top {
		overrides = c.cfg.overrides
	}

	applied := make(map[string]bool, len(overrides))

	for i := range rules {
		r := &rules[i]

		var (
			val   any
			write bool
		)

		if ov, ok := overrides[r.Target.String()]; ok {
			val, write = ov, true
			applied[r.Target.String()] = true
		} else {
			val, write, err = c.evaluate(d, r, src, dest)
			if err != nil {
				c.cfg.logger.Debug().
					Str("descriptor", d.name).
					Int("rule", r.Index).
					Str("target", r.Target.String()).
					Str("source", r.SourceSpec()).
					Err(err).
					Msg("rule failed")

				return nil, err
			}
		}

		if !write {
			continue
		}

		err = d.dst.Set(dest, r.Target, val)
		if err != nil {
			return nil, c.fail(d, r, nil, err)
		}
	}

	err = c.applyOverrides(d, dest, overrides, applied)
	if err != nil {
		return nil, err
	}

	for _, hook := range d.opts.postConvert {
		dest, err = safely(func() (any, error) { return hook(dest) })
		if err != nil {
			return nil, fmt.Errorf("convert %s: post-convert: %w", d.name, errors.Join(ErrTransform, err))
		}
	}

	return dest, nil
}

// applyOverrides writes the overrides no rule targets, in path order.
func (c *conversion) applyOverrides(d *Descriptor, dest any, overrides map[string]any, applied map[string]bool) error {
	var rest []string

	for key := range overrides {
		if !applied[key] {
			rest = append(rest, key)
		}
	}

	sort.Strings(rest)

	for _, key := range rest {
		p, err := fieldpath.Parse(key)
		if err != nil {
			return fmt.Errorf("convert %s: override: %w", d.name, err)
		}

		err = d.dst.Set(dest, p, overrides[key])
		if err != nil {
			return fmt.Errorf("convert %s: override %q: %w", d.name, key, err)
		}
	}

	return nil
}

func (c *conversion) fail(d *Descriptor, r *Rule, kind, err error) *RuleError {
	return &RuleError{
		Descriptor: d.name,
		Index:      r.Index,
		TargetPath: r.Target.String(),
		SourceSpec: r.SourceSpec(),
		Kind:       kind,
		Err:        err,
	}
}

// safely runs a user callable, turning a panic into a PanicError.
func safely(fn func() (any, error)) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, &PanicError{Value: p}
		}
	}()

	return fn()
}
