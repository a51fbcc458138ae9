package ruleset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	yaml := `
converters:
  - name: Order
    source: map
    target: map
    extends: Base
    options:
      include_nils: false
      no_source_default: ""
      trim_strings: true
    rules:
      - id
      - [customer, buyer.name]
      - [single]
      - {target: status, default: pending}
      - {target: meta, default: {a: 1}}
      - {target: ref, factory: uuid}
      - {target: placed, source: date, transform: datetime}
      - {target: lines, source: items, nested: Line, collection: true}
      - {target: tags, filter_empty: true, sort: true, max_len: 3, pluralize: true}
      - {target: note, source: NO_SOURCE}
  - name: Base
    rules: []
`

	f, err := Parse([]byte(yaml))
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, "1", f.Version)
	require.Len(t, f.Converters, 2)

	c := f.Converters[0]
	assert.Equal(t, "Order", c.Name)
	assert.Equal(t, "Base", c.Extends)
	require.NotNil(t, c.Options.IncludeNils)
	assert.False(t, *c.Options.IncludeNils)
	assert.Nil(t, c.Options.IncludeEmptyStrings)
	require.NotNil(t, c.Options.NoSourceDefault)
	assert.Equal(t, "", c.Options.NoSourceDefault.Value)
	assert.True(t, c.Options.TrimStrings)

	require.Len(t, c.Rules, 10)
	assert.Equal(t, RuleDef{Target: "id"}, c.Rules[0])
	assert.Equal(t, RuleDef{Target: "customer", Source: "buyer.name"}, c.Rules[1])
	assert.Equal(t, RuleDef{Target: "single"}, c.Rules[2])

	require.NotNil(t, c.Rules[3].Default)
	assert.Equal(t, "pending", c.Rules[3].Default.Value)
	assert.Equal(t, map[string]any{"a": 1}, c.Rules[4].Default.Value)
	assert.Equal(t, "uuid", c.Rules[5].Factory)
	assert.Equal(t, "datetime", c.Rules[6].Transform)
	assert.Equal(t, "date", c.Rules[6].Source)

	assert.Equal(t, "Line", c.Rules[7].Nested)
	assert.True(t, c.Rules[7].Collection)

	tags := c.Rules[8]
	assert.True(t, tags.FilterEmpty)
	assert.True(t, tags.Sort)
	assert.Equal(t, 3, tags.MaxLen)
	assert.True(t, tags.Pluralize)

	assert.Equal(t, NoSourceKeyword, c.Rules[9].Source)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"triple", "converters: [{name: A, rules: [[a, b, c]]}]"},
		{"nested sequence", "converters: [{name: A, rules: [[[a]]]}]"},
		{"not yaml", "converters: [\n"},
		{"unknown type", "converters: [{name: A, rules: [{target: a, max_len: many}]}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nconverters: [{name: A, rules: [a]}]\n"), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Converters, 1)
	assert.Equal(t, "A", f.Converters[0].Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalShortForms(t *testing.T) {
	f := &File{
		Version: "1",
		Converters: []ConverterDef{{
			Name: "A",
			Rules: []RuleDef{
				{Target: "a"},
				{Target: "b", Source: "c"},
				{Target: "d", Default: &Literal{Value: 5}},
			},
		}},
	}

	data, err := Marshal(f)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "- a\n")
	assert.Contains(t, out, "default: 5")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f.Converters[0].Rules[:2], back.Converters[0].Rules[:2])
	assert.Equal(t, 5, back.Converters[0].Rules[2].Default.Value)
}
