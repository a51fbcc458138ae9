package convert_test

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulemapper/convert"
)

type code string

func TestFuncAdaptsSignatures(t *testing.T) {
	errOdd := errors.New("odd")

	tests := []struct {
		name string
		fn   any
		in   any
		want map[string]any
		err  error
	}{
		{"plain", func(x int) int { return x + 1 }, 1, map[string]any{"v": 2}, nil},
		{"numeric conversion", func(x float64) float64 { return x / 2 }, 3, map[string]any{"v": 1.5}, nil},
		{"named string kind", func(c code) string { return strings.ToLower(string(c)) }, "ABC", map[string]any{"v": "abc"}, nil},
		{"stdlib function", strconv.Itoa, 7, map[string]any{"v": "7"}, nil},
		{"with error failing", func(x int) (int, error) {
			if x%2 == 1 {
				return 0, errOdd
			}

			return x, nil
		}, 3, nil, errOdd},
		{"bool keeps", func(s string) (string, bool) { return s, s != "" }, "x", map[string]any{"v": "x"}, nil},
		{"bool skips", func(s string) (string, bool) { return s, s != "" }, "", map[string]any{}, nil},
		{"bool and error", func(s string) (string, bool, error) { return s + "!", true, nil }, "x", map[string]any{"v": "x!"}, nil},
		{"wrong input type", func(x int) int { return x }, "str", nil, convert.ErrTransform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := convertOne(t, convert.E("v", "in", convert.Func(tt.fn)), map[string]any{"in": tt.in})
			if tt.err != nil {
				assert.Nil(t, out)
				assert.ErrorIs(t, err, tt.err)
				assert.ErrorIs(t, err, convert.ErrTransform)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestFuncFactories(t *testing.T) {
	n := 0
	counter := convert.Func(func() int {
		n++

		return n
	})
	assert.Equal(t, convert.KindFactoryDefault, counter.Kind())

	d := convert.MustDeclare("Counter", m, m, []convert.Entry{convert.E("n", convert.NoSource, counter)})

	first, err := convert.Convert(d, nil)
	require.NoError(t, err)

	second, err := convert.Convert(d, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"n": 1}, first)
	assert.Equal(t, map[string]any{"n": 2}, second)

	failing := convert.Func(func() (int, error) { return 0, errors.New("exhausted") })
	_, err = convertOne(t, convert.E("n", convert.NoSource, failing), nil)
	assert.ErrorIs(t, err, convert.ErrTransform)
	assert.ErrorContains(t, err, "exhausted")
}

func TestFuncNilInput(t *testing.T) {
	out, err := convertOne(t, convert.E("v", "in", convert.Func(func(x int) int { return x + 10 }), convert.WantsNil()),
		map[string]any{"in": nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 10}, out)
}

func TestFuncNames(t *testing.T) {
	assert.Equal(t, "strings.ToUpper", convert.Func(strings.ToUpper).Name())
	assert.Equal(t, "transform strings.ToUpper", convert.Func(strings.ToUpper).String())
	assert.Equal(t, "default", convert.Default(1).String())
}
