package convert

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRuleSpec is reported when a descriptor is built from a rule
	// entry with an unrecognized shape or an invalid source/value combination.
	// It is never returned while converting.
	ErrInvalidRuleSpec = errors.New("invalid rule spec")
	// ErrMissingRequiredSource is returned when a rule needs a source value
	// and its path resolves to nothing.
	ErrMissingRequiredSource = errors.New("missing required source")
	// ErrTransform wraps failures (errors and panics) of user supplied
	// transforms, factories and hooks.
	ErrTransform = errors.New("transform failed")
	// ErrRequirement is returned when a Required predicate rejects a value.
	ErrRequirement = errors.New("requirement not met")
	// ErrCopyOnly is returned by Convert for descriptors that can only
	// update an existing target.
	ErrCopyOnly = errors.New("descriptor is copy-only, use ConvertInto")
	// ErrRecursionLimit stops nested conversions that never bottom out.
	ErrRecursionLimit = errors.New("nested conversion depth limit exceeded")
)

// SpecError describes a malformed rule entry.
type SpecError struct {
	Descriptor string
	Index      int
	Reason     string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("descriptor %s: rule %d: %s: %s", e.Descriptor, e.Index, ErrInvalidRuleSpec, e.Reason)
}

func (e *SpecError) Unwrap() error {
	return ErrInvalidRuleSpec
}

// RuleError is returned when a rule fails during a conversion. Kind is one of
// the package sentinels or nil when the failure comes from an accessor or a
// nested conversion; Err is the underlying cause.
type RuleError struct {
	Descriptor string
	Index      int
	TargetPath string
	SourceSpec string
	Kind       error
	Err        error
}

func (e *RuleError) Error() string {
	msg := fmt.Sprintf("convert %s: rule %d (target %q, source %q)", e.Descriptor, e.Index, e.TargetPath, e.SourceSpec)

	switch {
	case e.Kind != nil && e.Err != nil:
		return msg + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Kind != nil:
		return msg + ": " + e.Kind.Error()
	case e.Err != nil:
		return msg + ": " + e.Err.Error()
	default:
		return msg
	}
}

func (e *RuleError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// PanicError carries a value recovered from a panicking user callable.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
