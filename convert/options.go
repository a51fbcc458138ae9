package convert

import (
	"time"

	"github.com/rs/zerolog"

	"rulemapper/primitive"
)

type washer struct {
	category primitive.CategoryEnum
	fn       func(v any) any
}

type descriptorOptions struct {
	includeNils         bool
	includeEmptyStrings bool
	nilsToBlank         bool
	noSourceDefault     any
	hasNoSourceDefault  bool
	copyOnly            bool
	washers             []washer
	postConvert         []func(target any) (any, error)
}

func defaultDescriptorOptions() descriptorOptions {
	return descriptorOptions{
		includeNils:         true,
		includeEmptyStrings: true,
	}
}

// DescriptorOption configures a Descriptor.
type DescriptorOption func(*descriptorOptions)

// IncludeNils controls whether nil values are written. Defaults to true.
func IncludeNils(include bool) DescriptorOption {
	return func(o *descriptorOptions) { o.includeNils = include }
}

// IncludeEmptyStrings controls whether "" is written. Defaults to true.
func IncludeEmptyStrings(include bool) DescriptorOption {
	return func(o *descriptorOptions) { o.includeEmptyStrings = include }
}

// NilsToBlank writes "" instead of nil.
func NilsToBlank(blank bool) DescriptorOption {
	return func(o *descriptorOptions) { o.nilsToBlank = blank }
}

// NoSourceDefault makes E(target, NoSource) valid, writing v.
func NoSourceDefault(v any) DescriptorOption {
	return func(o *descriptorOptions) {
		o.noSourceDefault = v
		o.hasNoSourceDefault = true
	}
}

// CopyOnly declares that the descriptor only updates existing targets.
func CopyOnly() DescriptorOption {
	return func(o *descriptorOptions) { o.copyOnly = true }
}

// Washer rewrites every written value of the given categories, unless the
// rule opts out with SkipWash. Washers run in declaration order.
func Washer(category primitive.CategoryEnum, fn func(v any) any) DescriptorOption {
	return func(o *descriptorOptions) {
		o.washers = append(o.washers, washer{category: category, fn: fn})
	}
}

// PostConvert runs fn on the assembled target; its result is returned to the caller.
func PostConvert(fn func(target any) (any, error)) DescriptorOption {
	return func(o *descriptorOptions) {
		o.postConvert = append(o.postConvert, fn)
	}
}

func (o descriptorOptions) clone() descriptorOptions {
	o.washers = append([]washer(nil), o.washers...)
	o.postConvert = append([]func(any) (any, error)(nil), o.postConvert...)

	return o
}

// Observer is notified once per top-level conversion.
type Observer interface {
	ObserveConversion(descriptor string, elapsed time.Duration, err error)
}

type callConfig struct {
	vars      map[string]any
	overrides map[string]any
	logger    zerolog.Logger
	observer  Observer
}

// CallOption configures a single Convert call.
type CallOption func(*callConfig)

// WithVars supplies values for source paths the source object lacks. Source
// values always win; vars are visible to nested conversions too.
func WithVars(vars map[string]any) CallOption {
	return func(c *callConfig) { c.vars = vars }
}

// WithOverrides replaces the value of the rules targeting the given paths.
// Paths no rule targets are written after all rules.
func WithOverrides(overrides map[string]any) CallOption {
	return func(c *callConfig) { c.overrides = overrides }
}

// WithLogger enables debug logging of the conversion.
func WithLogger(logger zerolog.Logger) CallOption {
	return func(c *callConfig) { c.logger = logger }
}

// WithObserver reports the conversion outcome to o.
func WithObserver(o Observer) CallOption {
	return func(c *callConfig) { c.observer = o }
}
