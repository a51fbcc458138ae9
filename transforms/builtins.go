package transforms

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rulemapper/convert"
	"rulemapper/primitive"
)

// Builtins returns a registry preloaded with the standard transforms:
//
//	datetime, datetime_naive, datetime_naive_to_utc, time, date,
//	upper, lower, trim, int, float, string, bool
//
// and factories:
//
//	now, uuid, empty_map, empty_list
func Builtins() *Registry {
	r := NewRegistry()

	r.Add("datetime", Datetime)
	r.Add("datetime_naive", DatetimeNaive)
	r.Add("datetime_naive_to_utc", DatetimeNaiveToUTC)
	r.Add("time", TimeOfDay)
	r.Add("date", Date)

	r.Add("upper", text(strings.ToUpper))
	r.Add("lower", text(strings.ToLower))
	r.Add("trim", text(strings.TrimSpace))

	r.Add("int", Int)
	r.Add("float", Float)
	r.Add("string", String)
	r.Add("bool", Bool)

	r.AddFactory("now", func() (any, error) { return time.Now().UTC(), nil })
	r.AddFactory("uuid", func() (any, error) { return uuid.NewString(), nil })
	r.AddFactory("empty_map", func() (any, error) { return map[string]any{}, nil })
	r.AddFactory("empty_list", func() (any, error) { return []any{}, nil })

	return r
}

func text(fn func(string) string) convert.TransformFunc {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}

		return fn(s), nil
	}
}

// Int converts numbers, numeric strings and booleans to int64. Floats must
// be integral.
func Int(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1), nil
		}

		return int64(0), nil

	case string:
		s := strings.TrimSpace(x)

		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n, nil
		}

		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil, fmt.Errorf("parse int %q: %w", x, err)
		}

		return intOfFloat(f)
	}

	rv := reflect.ValueOf(v)
	kind := primitive.Of(v)

	switch {
	case kind.IsSigned():
		return rv.Int(), nil
	case kind.IsUnsigned():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", u)
		}

		return int64(u), nil
	case kind.IsFloat():
		return intOfFloat(rv.Float())
	case kind == primitive.KindDuration:
		return int64(v.(time.Duration)), nil //nolint:forcetypeassert
	}

	return nil, fmt.Errorf("cannot convert %T to int", v)
}

func intOfFloat(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("%v is not an integer", f)
	}

	return int64(f), nil
}

// Float converts numbers and numeric strings to float64.
func Float(v any) (any, error) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", s, err)
		}

		return f, nil
	}

	rv := reflect.ValueOf(v)
	kind := primitive.Of(v)

	switch {
	case kind.IsSigned():
		return float64(rv.Int()), nil
	case kind.IsUnsigned():
		return float64(rv.Uint()), nil
	case kind.IsFloat():
		return rv.Float(), nil
	}

	return nil, fmt.Errorf("cannot convert %T to float", v)
}

// String formats scalars; times use RFC 3339.
func String(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return x.String(), nil
	}

	if primitive.Of(v) == 0 {
		return nil, fmt.Errorf("cannot convert %T to string", v)
	}

	return fmt.Sprint(v), nil
}

// Bool converts booleans, strings accepted by strconv.ParseBool plus
// "yes"/"no"/"y"/"n", and numbers (non-zero is true).
func Bool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off", "":
			return false, nil
		}

		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", x, err)
		}

		return b, nil
	}

	f, err := Float(v)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to bool", v)
	}

	return f.(float64) != 0, nil //nolint:forcetypeassert
}
