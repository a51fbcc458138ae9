package convert_test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulemapper/accessor/mapaccess"
	"rulemapper/convert"
)

var m = mapaccess.New()

func TestConvertDeclaredExample(t *testing.T) {
	d := convert.MustDeclare("Example", m, m, []convert.Entry{
		convert.E("a"),
		convert.E("b", "a"),
		convert.E("c", convert.NoSource, "a default"),
		convert.E("d", "a", func(x int) int { return x * 2 }),
		convert.E("e", convert.NoSource, func() map[string]any { return map[string]any{} }),
	})

	out, err := convert.Convert(d, map[string]any{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": 1,
		"b": 1,
		"c": "a default",
		"d": 2,
		"e": map[string]any{},
	}, out)
}

func TestConvertTaggedConstructors(t *testing.T) {
	d := convert.MustDeclare("Tagged", m, m, []convert.Entry{
		convert.E("a"),
		convert.E("b", "a"),
		convert.E("c", convert.NoSource, convert.Default("a default")),
		convert.E("d", "a", convert.Transform(func(v any) (any, error) { return v.(int) * 2, nil })),
		convert.E("e", convert.NoSource, convert.Factory(func() (any, error) { return map[string]any{}, nil })),
	})

	out, err := convert.Convert(d, map[string]any{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 1, "b": 1, "c": "a default", "d": 2, "e": map[string]any{}}, out)
}

func TestConvertMissingRequiredSource(t *testing.T) {
	tests := []struct {
		name  string
		entry convert.Entry
	}{
		{"bare", convert.E("a")},
		{"pair", convert.E("b", "a")},
		{"dotted", convert.E("b", "x.y.z")},
		{"transform", convert.E("b", "a", convert.Transform(func(v any) (any, error) { return v, nil }))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := convert.MustDeclare("Missing", m, m, []convert.Entry{tt.entry})

			out, err := convert.Convert(d, map[string]any{"x": map[string]any{"y": 1}})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, convert.ErrMissingRequiredSource)

			var re *convert.RuleError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "Missing", re.Descriptor)
			assert.Equal(t, 0, re.Index)
		})
	}
}

func TestConvertMissingReferencesTarget(t *testing.T) {
	d := convert.MustDeclare("Example", m, m, []convert.Entry{convert.E("b", convert.NoSource, 1), convert.E("a")})

	_, err := convert.Convert(d, map[string]any{"b": 2})
	require.ErrorIs(t, err, convert.ErrMissingRequiredSource)

	var re *convert.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "a", re.TargetPath)
	assert.Equal(t, "a", re.SourceSpec)
	assert.Equal(t, 1, re.Index)
	assert.Equal(t, `convert Example: rule 1 (target "a", source "a"): missing required source`, err.Error())
}

func TestConvertTransformError(t *testing.T) {
	boom := errors.New("boom")

	d := convert.MustDeclare("Failing", m, m, []convert.Entry{
		convert.E("a"),
		convert.E("d", "a", convert.Transform(func(any) (any, error) { return nil, boom })),
	})

	out, err := convert.Convert(d, map[string]any{"a": 1})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, convert.ErrTransform)
	assert.ErrorIs(t, err, boom)

	var re *convert.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "d", re.TargetPath)
	assert.Equal(t, "a", re.SourceSpec)
}

func TestConvertRecoversPanics(t *testing.T) {
	d := convert.MustDeclare("Panicking", m, m, []convert.Entry{
		convert.E("d", "a", func(int) int { panic("kaboom") }),
	})

	out, err := convert.Convert(d, map[string]any{"a": 1})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, convert.ErrTransform)

	var pe *convert.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestConvertDefaultsAndFactories(t *testing.T) {
	shared := []string{"x"}

	d := convert.MustDeclare("Defaults", m, m, []convert.Entry{
		convert.E("static", convert.NoSource, convert.Default(shared)),
		convert.E("fresh", convert.NoSource, func() map[string]any { return map[string]any{} }),
	})

	first, err := convert.Convert(d, map[string]any{})
	require.NoError(t, err)

	second, err := convert.Convert(d, map[string]any{})
	require.NoError(t, err)

	a := first.(map[string]any)
	b := second.(map[string]any)

	assert.Equal(t, a["static"], b["static"])
	assert.Equal(t, shared, a["static"])

	a["fresh"].(map[string]any)["touched"] = true
	assert.Empty(t, b["fresh"], "factory values must not be shared between conversions")
}

func TestConvertDefaultWithSource(t *testing.T) {
	d := convert.MustDeclare("Fallback", m, m, []convert.Entry{
		convert.E("c", "c", convert.Default("d")),
		convert.E("f", "f", convert.Factory(func() (any, error) { return "made", nil })),
	})

	tests := []struct {
		name string
		src  map[string]any
		want map[string]any
	}{
		{"absent", map[string]any{}, map[string]any{"c": "d", "f": "made"}},
		{"nil", map[string]any{"c": nil, "f": nil}, map[string]any{"c": "d", "f": "made"}},
		{"blank", map[string]any{"c": "", "f": ""}, map[string]any{"c": "d", "f": "made"}},
		{"value wins", map[string]any{"c": "x", "f": 0}, map[string]any{"c": "x", "f": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := convert.Convert(d, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestConvertLastWriteWins(t *testing.T) {
	calls := 0

	d := convert.MustDeclare("Overwrite", m, m, []convert.Entry{
		convert.E("x", "a", convert.Transform(func(v any) (any, error) {
			calls++
			time.Sleep(time.Millisecond)

			return "expensive", nil
		})),
		convert.E("x", "b"),
	})

	out, err := convert.Convert(d, map[string]any{"a": 1, "b": "later"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": "later"}, out)
	assert.Equal(t, 1, calls)
}

func TestConvertIdempotent(t *testing.T) {
	line := convert.MustDeclare("Line", m, m, []convert.Entry{convert.E("sku"), convert.E("qty")})
	d := convert.MustDeclare("Order", m, m, []convert.Entry{
		convert.E("id"),
		convert.E("lines", "items", convert.NestedMany(line)),
	})

	src := func() map[string]any {
		return map[string]any{
			"id":    7,
			"items": []any{map[string]any{"sku": "A", "qty": 1}},
		}
	}

	first, err := convert.Convert(d, src())
	require.NoError(t, err)

	second, err := convert.Convert(d, src())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConvertNestedCollection(t *testing.T) {
	line := convert.MustDeclare("Line", m, m, []convert.Entry{
		convert.E("sku", "code"),
		convert.E("qty", "n"),
	})

	order := convert.MustDeclare("Order", m, m, []convert.Entry{
		convert.E("lines", "items", convert.NestedMany(line)),
	})

	items := make([]any, 0, 5)
	for i := range 5 {
		items = append(items, map[string]any{"code": fmt.Sprintf("SKU-%d", i), "n": i})
	}

	out, err := convert.Convert(order, map[string]any{"items": items})
	require.NoError(t, err)

	lines := out.(map[string]any)["lines"].([]any)
	require.Len(t, lines, len(items))

	for i, l := range lines {
		assert.Equal(t, map[string]any{"sku": fmt.Sprintf("SKU-%d", i), "qty": i}, l)
	}
}

func TestConvertNestedCollectionElementFailure(t *testing.T) {
	line := convert.MustDeclare("Line", m, m, []convert.Entry{convert.E("sku", "code")})
	order := convert.MustDeclare("Order", m, m, []convert.Entry{
		convert.E("lines", "items", convert.NestedMany(line)),
	})

	out, err := convert.Convert(order, map[string]any{"items": []any{
		map[string]any{"code": "A"},
		map[string]any{"name": "no code"},
	}})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, convert.ErrMissingRequiredSource)
	assert.ErrorContains(t, err, "element 1")

	_, err = convert.Convert(order, map[string]any{"items": "not a list"})
	assert.ErrorContains(t, err, "needs a list")
}

func TestConvertNestedFromNoSource(t *testing.T) {
	address := convert.MustDeclare("Address", m, m, []convert.Entry{
		convert.E("country", convert.NoSource, "NL"),
	})
	strict := convert.MustDeclare("Strict", m, m, []convert.Entry{convert.E("id")})

	d := convert.MustDeclare("Person", m, m, []convert.Entry{
		convert.E("address", convert.NoSource, address),
		convert.E("tags", convert.NoSource, convert.NestedMany(address)),
	})

	out, err := convert.Convert(d, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"address": map[string]any{"country": "NL"},
		"tags":    []any{},
	}, out)

	bad := convert.MustDeclare("Bad", m, m, []convert.Entry{
		convert.E("child", convert.NoSource, strict),
	})

	_, err = convert.Convert(bad, map[string]any{})
	require.ErrorIs(t, err, convert.ErrMissingRequiredSource)

	var re *convert.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Bad", re.Descriptor)
	assert.Equal(t, "child", re.TargetPath)
	assert.Equal(t, "NO_SOURCE", re.SourceSpec)
}

func TestConvertNestedFoundNil(t *testing.T) {
	address := convert.MustDeclare("Address", m, m, []convert.Entry{convert.E("street")})
	d := convert.MustDeclare("Person", m, m, []convert.Entry{
		convert.E("address", "address", address),
	})

	out, err := convert.Convert(d, map[string]any{"address": nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"address": nil}, out)
}

func TestConvertSelfReference(t *testing.T) {
	var node *convert.Descriptor
	node = convert.MustDeclare("Node", m, m, []convert.Entry{
		convert.E("name"),
		convert.E("children", "kids", convert.NestedFunc(func() *convert.Descriptor { return node }).Many()),
	})

	src := map[string]any{
		"name": "root",
		"kids": []any{
			map[string]any{"name": "a", "kids": []any{map[string]any{"name": "a1"}}},
			map[string]any{"name": "b"},
		},
	}

	out, err := convert.Convert(node, src)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name": "root",
		"children": []any{
			map[string]any{"name": "a", "children": []any{
				map[string]any{"name": "a1", "children": []any{}},
			}},
			map[string]any{"name": "b", "children": []any{}},
		},
	}, out)
}

func TestConvertRecursionLimit(t *testing.T) {
	var loop *convert.Descriptor
	loop = convert.Define("Loop", m, m, []convert.Entry{
		convert.E("self", convert.NoSource, convert.NestedFunc(func() *convert.Descriptor { return loop })),
	})

	_, err := convert.Convert(loop, map[string]any{})
	assert.ErrorIs(t, err, convert.ErrRecursionLimit)
}

func TestExtendConcatenatesRules(t *testing.T) {
	base := convert.MustDeclare("Base", m, m, []convert.Entry{
		convert.E("id"),
		convert.E("kind", convert.NoSource, "base"),
	}, convert.IncludeNils(false))

	child := base.Extend("Child", []convert.Entry{
		convert.E("kind", convert.NoSource, "child"),
		convert.E("extra", "x"),
	})

	out, err := convert.Convert(child, map[string]any{"id": 1, "x": nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1, "kind": "child"}, out, "child rules run after the parent's and options are inherited")

	out, err = convert.Convert(base, map[string]any{"id": 1, "x": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1, "kind": "base"}, out)

	rules, err := child.Rules()
	require.NoError(t, err)
	require.Len(t, rules, 4)
	assert.Equal(t, 2, rules[2].Index)
	assert.Equal(t, "Child", child.Name())
}

func TestConcurrentFirstUse(t *testing.T) {
	d := convert.Define("Concurrent", m, m, []convert.Entry{
		convert.E("a"),
		convert.E("b", "a", func(x int) int { return x + 1 }),
	})

	const workers = 16

	var wg sync.WaitGroup

	results := make([]any, workers)
	errs := make([]error, workers)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], errs[i] = convert.Convert(d, map[string]any{"a": i})
		}()
	}

	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]any{"a": i, "b": i + 1}, results[i])
	}
}

func TestConvertInto(t *testing.T) {
	d := convert.MustDeclare("Patch", m, m, []convert.Entry{convert.E("name")}, convert.CopyOnly())

	_, err := convert.Convert(d, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, convert.ErrCopyOnly)

	dest := map[string]any{"id": 1, "name": "old"}
	out, err := convert.ConvertInto(d, map[string]any{"name": "new"}, dest)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1, "name": "new"}, out)

	_, err = convert.ConvertInto(d, map[string]any{}, nil)
	assert.Error(t, err)
}

func TestAs(t *testing.T) {
	d := convert.MustDeclare("AsMap", m, m, []convert.Entry{convert.E("a")})

	out, err := convert.As[map[string]any](d, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out["a"])

	_, err = convert.As[string](d, map[string]any{"a": 1})
	assert.ErrorContains(t, err, "not string")

	_, err = convert.As[map[string]any](d, map[string]any{})
	assert.ErrorIs(t, err, convert.ErrMissingRequiredSource)
}

func TestWithVars(t *testing.T) {
	inner := convert.MustDeclare("Inner", m, m, []convert.Entry{convert.E("tenant")})
	d := convert.MustDeclare("Outer", m, m, []convert.Entry{
		convert.E("user"),
		convert.E("tenant"),
		convert.E("inner", convert.NoSource, inner),
	})

	vars := map[string]any{"user": "from-vars", "tenant": "acme"}

	out, err := convert.Convert(d, map[string]any{"user": "from-source"}, convert.WithVars(vars))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"user":   "from-source",
		"tenant": "acme",
		"inner":  map[string]any{"tenant": "acme"},
	}, out)

	_, err = convert.Convert(d, map[string]any{"user": "from-source"})
	assert.ErrorIs(t, err, convert.ErrMissingRequiredSource)
}

func TestWithOverrides(t *testing.T) {
	d := convert.MustDeclare("Overrides", m, m, []convert.Entry{
		convert.E("a"),
		convert.E("b", "missing"),
	})

	out, err := convert.Convert(d, map[string]any{"a": 1}, convert.WithOverrides(map[string]any{
		"b":          99,
		"extra.flag": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 99, "extra": map[string]any{"flag": true}}, out)

	_, err = convert.Convert(d, map[string]any{"a": 1, "missing": 2}, convert.WithOverrides(map[string]any{"bad..path": 1}))
	assert.Error(t, err)
}

type observation struct {
	name string
	err  error
}

type recorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recorder) ObserveConversion(descriptor string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.obs = append(r.obs, observation{name: descriptor, err: err})
}

func TestWithObserverAndLogger(t *testing.T) {
	line := convert.MustDeclare("Line", m, m, []convert.Entry{convert.E("sku")})
	d := convert.MustDeclare("Order", m, m, []convert.Entry{
		convert.E("lines", "items", convert.NestedMany(line)),
		convert.E("id"),
	})

	rec := &recorder{}

	var buf bytes.Buffer

	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	_, err := convert.Convert(d, map[string]any{"items": []any{map[string]any{"sku": "A"}}, "id": 1},
		convert.WithObserver(rec), convert.WithLogger(logger))
	require.NoError(t, err)

	_, err = convert.Convert(d, map[string]any{"items": []any{}},
		convert.WithObserver(rec), convert.WithLogger(logger))
	require.Error(t, err)

	require.Len(t, rec.obs, 2, "nested conversions are not observed")
	assert.Equal(t, "Order", rec.obs[0].name)
	assert.NoError(t, rec.obs[0].err)
	assert.ErrorIs(t, rec.obs[1].err, convert.ErrMissingRequiredSource)

	assert.Contains(t, buf.String(), `"message":"rule failed"`)
	assert.Contains(t, buf.String(), `"target":"id"`)
	assert.Contains(t, buf.String(), `"message":"converted"`)
}
