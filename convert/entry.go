package convert

// noSource is the type of the NoSource sentinel.
type noSource struct{}

func (noSource) String() string { return "NO_SOURCE" }

// NoSource marks a rule whose value does not come from the source object.
// It is only valid together with a default, a factory or a nested descriptor.
var NoSource = noSource{}

// Entry is one raw rule declaration. Build it with E.
type Entry struct {
	parts []any
	opts  []FieldOption
}

// E declares a rule. Accepted shapes:
//
//	E("a")                           copy a to a
//	E("b", "a")                      copy a to b
//	E("a", valueRule)                value rule applied to a, written to a
//	E("c", NoSource, Default(v))     default, factory or nested from nothing
//	E("d", "a", Transform(fn))       transform, nested, or a default used when a is empty
//
// A raw function in the third position is adapted with Func, a *Descriptor
// with Nested, and with NoSource any other value becomes a Default.
// FieldOptions may follow the positional parts.
func E(parts ...any) Entry {
	n := len(parts)
	for n > 0 {
		if _, ok := parts[n-1].(FieldOption); !ok {
			break
		}

		n--
	}

	e := Entry{parts: parts[:n:n]}
	for _, p := range parts[n:] {
		e.opts = append(e.opts, p.(FieldOption)) //nolint:forcetypeassert
	}

	return e
}

// FieldOptions tune how a single rule post-processes its value.
type FieldOptions struct {
	// Required rejects a found source value with ErrRequirement.
	Required func(v any) bool
	// Filter drops collection elements, or skips the write for scalars.
	Filter func(v any) bool
	// Less sorts a collection result.
	Less func(a, b any) bool
	// SortNatural sorts numbers and strings in their natural order.
	SortNatural bool
	// MaxLen truncates strings (by rune) and collections. Zero means no limit.
	MaxLen int
	// Pluralize wraps a single value into a one-element collection.
	Pluralize bool
	// Collection applies a transform or nested descriptor per element.
	Collection bool
	// Merge converts a nested value into whatever the target already holds.
	Merge bool
	// WantsNil passes a found nil to the transform instead of writing nil.
	WantsNil bool
	// SkipWash bypasses descriptor washers.
	SkipWash bool
}

type FieldOption func(*FieldOptions)

func Required(pred func(v any) bool) FieldOption {
	return func(o *FieldOptions) { o.Required = pred }
}

func Filter(pred func(v any) bool) FieldOption {
	return func(o *FieldOptions) { o.Filter = pred }
}

func Sort(less func(a, b any) bool) FieldOption {
	return func(o *FieldOptions) { o.Less = less }
}

func SortNatural() FieldOption {
	return func(o *FieldOptions) { o.SortNatural = true }
}

func MaxLen(n int) FieldOption {
	return func(o *FieldOptions) { o.MaxLen = n }
}

func Pluralize() FieldOption {
	return func(o *FieldOptions) { o.Pluralize = true }
}

func Collection() FieldOption {
	return func(o *FieldOptions) { o.Collection = true }
}

func Merge() FieldOption {
	return func(o *FieldOptions) { o.Merge = true }
}

func WantsNil() FieldOption {
	return func(o *FieldOptions) { o.WantsNil = true }
}

func SkipWash() FieldOption {
	return func(o *FieldOptions) { o.SkipWash = true }
}

// NotEmpty is a predicate for Required and Filter rejecting nil, empty
// strings and empty collections.
func NotEmpty(v any) bool {
	if v == nil {
		return false
	}

	if s, ok := v.(string); ok {
		return s != ""
	}

	if items, ok := asSlice(v); ok {
		return len(items) > 0
	}

	return true
}
