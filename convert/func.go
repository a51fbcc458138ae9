package convert

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"runtime"
	"strings"
)

var (
	ErrIsNotAFunc      = errors.New("value is not a function")
	ErrUnsupportedFunc = errors.New("function signature is not a recognizable transform or factory")

	errorType = reflect.TypeFor[error]()
)

// errSkip is returned by adapted functions reporting ok=false.
var errSkip = errors.New("value skipped")

// Func adapts a typed Go function into a ValueRule.
//
// Supports signatures:
//   - func() R and func() (R, error) as factories
//   - func(T) R as a transform
//   - func(T) (R, bool), where false skips the write
//   - func(T) (R, error)
//   - func(T) (R, bool, error)
//
// Source values are converted to T when assignable, or when both are numbers
// or share the same underlying kind. A nil source becomes the zero T.
func Func(fn any) ValueRule {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return ValueRule{kind: KindTransform, err: fmt.Errorf("%w: %T", ErrIsNotAFunc, fn)}
	}

	fnType := fnVal.Type()
	if fnType.IsVariadic() || fnType.NumIn() > 1 || fnType.NumOut() == 0 {
		return ValueRule{kind: KindTransform, err: fmt.Errorf("%w: %s", ErrUnsupportedFunc, fnType)}
	}

	hasBool, hasErr, ok := outShape(fnType)
	if !ok {
		return ValueRule{kind: KindTransform, err: fmt.Errorf("%w: %s", ErrUnsupportedFunc, fnType)}
	}

	name := funcName(fnVal)

	if fnType.NumIn() == 0 {
		if hasBool {
			return ValueRule{kind: KindFactoryDefault, err: fmt.Errorf("%w: %s", ErrUnsupportedFunc, fnType)}
		}

		return Factory(func() (any, error) {
			return unpack(fnVal.Call(nil), false, hasErr)
		}).Named(name)
	}

	in := fnType.In(0)

	return Transform(func(v any) (any, error) {
		arg, err := argOf(in, v)
		if err != nil {
			return nil, err
		}

		return unpack(fnVal.Call([]reflect.Value{arg}), hasBool, hasErr)
	}).Named(name)
}

func outShape(fnType reflect.Type) (hasBool, hasErr, ok bool) {
	switch fnType.NumOut() {
	default:
		return false, false, false

	case 1:
		return false, false, true

	case 2:
		last := fnType.Out(1)

		switch {
		default:
			return false, false, false
		case last.Kind() == reflect.Bool:
			return true, false, true
		case last == errorType:
			return false, true, true
		}

	case 3:
		tbool, terr := fnType.Out(1), fnType.Out(2)
		if tbool.Kind() != reflect.Bool || terr != errorType {
			return false, false, false
		}

		return true, true, true
	}
}

func unpack(out []reflect.Value, hasBool, hasErr bool) (any, error) {
	if hasErr {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error) //nolint:forcetypeassert
		}
	}

	if hasBool && !out[1].Bool() {
		return nil, errSkip
	}

	return out[0].Interface(), nil
}

func argOf(in reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(in), nil
	}

	val := reflect.ValueOf(v)
	vt := val.Type()

	switch {
	case vt.AssignableTo(in):
		return val, nil
	case isNumberKind(vt.Kind()) && isNumberKind(in.Kind()):
		return val.Convert(in), nil
	case vt.Kind() == in.Kind() && vt.ConvertibleTo(in):
		return val.Convert(in), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, in)
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// funcName returns "pkg.Name" for a function value.
func funcName(fnVal reflect.Value) string {
	fnPC := runtime.FuncForPC(fnVal.Pointer())
	if fnPC == nil {
		return ""
	}

	_, name := path.Split(fnPC.Name())

	return strings.TrimSuffix(name, "-fm")
}
