package ruleset

import (
	"rulemapper/accessor/fixedwidth"
)

// NoSourceKeyword spells convert.NoSource in rule files.
const NoSourceKeyword = "NO_SOURCE"

// File is the root structure of a rule file.
type File struct {
	// Version is the schema version (currently "1").
	Version string `yaml:"version"`
	// Layouts are fixed-width record layouts referenced as "fixedwidth:<name>".
	Layouts []*fixedwidth.Layout `yaml:"layouts,omitempty"`
	// Converters are the descriptors declared by this file.
	Converters []ConverterDef `yaml:"converters"`
}

// ConverterDef declares one descriptor.
type ConverterDef struct {
	// Name identifies the converter; nested rules and extends refer to it.
	Name string `yaml:"name"`
	// Source is the kind of objects read: map, tabular, xml:<root> or fixedwidth:<layout>.
	Source string `yaml:"source,omitempty"`
	// Target is the kind of objects written, spelled like Source.
	Target string `yaml:"target,omitempty"`
	// Extends names a parent converter whose rules run first.
	Extends string `yaml:"extends,omitempty"`
	// Options are descriptor-wide policies.
	Options OptionsDef `yaml:"options,omitempty"`
	// Rules in declaration order.
	Rules []RuleDef `yaml:"rules"`
}

// OptionsDef mirrors the descriptor options of the convert package.
type OptionsDef struct {
	IncludeNils         *bool    `yaml:"include_nils,omitempty"`
	IncludeEmptyStrings *bool    `yaml:"include_empty_strings,omitempty"`
	NilsToBlank         bool     `yaml:"nils_to_blank,omitempty"`
	NoSourceDefault     *Literal `yaml:"no_source_default,omitempty"`
	CopyOnly            bool     `yaml:"copy_only,omitempty"`
	// TrimStrings installs a washer trimming spaces from every written string.
	TrimStrings bool `yaml:"trim_strings,omitempty"`
	// RoundFloats installs a washer rounding floats to the given number of decimals.
	RoundFloats *int `yaml:"round_floats,omitempty"`
}

// RuleDef is one rule entry. In YAML it is either a bare target ("a"),
// a [target, source] pair, or a mapping with the fields below.
type RuleDef struct {
	Target string `yaml:"target"`
	// Source defaults to Target, or to NO_SOURCE for default and factory rules.
	Source string `yaml:"source,omitempty"`

	// At most one of the following value rules may be set.
	Default   *Literal `yaml:"default,omitempty"`
	Factory   string   `yaml:"factory,omitempty"`
	Transform string   `yaml:"transform,omitempty"`
	Expr      string   `yaml:"expr,omitempty"`
	Nested    string   `yaml:"nested,omitempty"`

	Collection  bool `yaml:"collection,omitempty"`
	Required    bool `yaml:"required,omitempty"`
	FilterEmpty bool `yaml:"filter_empty,omitempty"`
	Sort        bool `yaml:"sort,omitempty"`
	MaxLen      int  `yaml:"max_len,omitempty"`
	Pluralize   bool `yaml:"pluralize,omitempty"`
	Merge       bool `yaml:"merge,omitempty"`
	WantsNil    bool `yaml:"wants_nil,omitempty"`
	SkipWash    bool `yaml:"skip_wash,omitempty"`
}

// Literal is an arbitrary YAML value used as a static default.
type Literal struct {
	Value any
}

// valueRules lists the value rule keys set on r.
func (r *RuleDef) valueRules() []string {
	var keys []string

	if r.Default != nil {
		keys = append(keys, "default")
	}

	if r.Factory != "" {
		keys = append(keys, "factory")
	}

	if r.Transform != "" {
		keys = append(keys, "transform")
	}

	if r.Expr != "" {
		keys = append(keys, "expr")
	}

	if r.Nested != "" {
		keys = append(keys, "nested")
	}

	return keys
}
