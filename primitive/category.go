package primitive

type CategoryEnum int

const (
	CategoryInteger  CategoryEnum = 1 << iota // signed and unsigned integers
	CategoryFloat                             // float32, float64
	CategoryBool                              // bool
	CategoryString                            // string
	CategoryTime                              // time.Time
	CategoryDuration                          // time.Duration
	CategoryNamed                             // named int or string types

	CategoryAll  = (1 << iota) - 1 // all categories combined
	CategoryNone = 0               // no categories selected
)

// CategoryNumber selects integers and floats.
const CategoryNumber = CategoryInteger | CategoryFloat

// Category returns the single category bit a kind belongs to.
func (k KindEnum) Category() CategoryEnum {
	switch {
	case k.IsInteger():
		return CategoryInteger
	case k.IsFloat():
		return CategoryFloat
	}

	switch k {
	default:
		return CategoryNone
	case KindBool:
		return CategoryBool
	case KindString:
		return CategoryString
	case KindTime:
		return CategoryTime
	case KindDuration:
		return CategoryDuration
	case KindPrimitiveEnum:
		return CategoryNamed
	}
}

// Has reports whether c includes every bit of other.
func (c CategoryEnum) Has(other CategoryEnum) bool {
	return other != CategoryNone && c&other == other
}

// Matches reports whether the value v falls into one of the categories in c.
func (c CategoryEnum) Matches(v any) bool {
	return c.Has(Of(v).Category())
}
