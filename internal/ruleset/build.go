package ruleset

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"rulemapper/accessor/fixedwidth"
	"rulemapper/accessor/mapaccess"
	"rulemapper/convert"
	"rulemapper/internal/diagnostic"
	"rulemapper/internal/match"
	"rulemapper/primitive"
	"rulemapper/transforms"
)

// SupportedVersion is the only rule file version understood by Build.
const SupportedVersion = "1"

var ErrUnknownConverter = errors.New("unknown converter")

// Catalog is the immutable set of descriptors declared by a rule file.
type Catalog struct {
	descriptors map[string]*convert.Descriptor
	defs        map[string]*ConverterDef
	layouts     map[string]*fixedwidth.Layout
	names       []string
}

// Get returns the descriptor registered under name.
func (c *Catalog) Get(name string) (*convert.Descriptor, bool) {
	d, ok := c.descriptors[name]
	return d, ok
}

// Lookup is like Get but reports unknown names with suggestions.
func (c *Catalog) Lookup(name string) (*convert.Descriptor, error) {
	d, ok := c.descriptors[name]
	if ok {
		return d, nil
	}

	suggestions := match.Suggest(name, c.names, match.DefaultSuggestions)
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("%w %q", ErrUnknownConverter, name)
	}

	return nil, fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownConverter, name, suggestions[0])
}

// Def returns the declaration of a converter with inherited kinds filled in.
func (c *Catalog) Def(name string) (*ConverterDef, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Layout returns a fixed-width layout declared by the file.
func (c *Catalog) Layout(name string) (*fixedwidth.Layout, bool) {
	l, ok := c.layouts[name]
	return l, ok
}

// Names returns converter names in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of converters.
func (c *Catalog) Len() int {
	return len(c.names)
}

type builder struct {
	res      *diagnostic.Diagnostics
	registry *transforms.Registry
	cat      *Catalog
	state    map[string]int
	// entry counts including inherited entries, to map table indexes back to rules
	entries map[string]int
}

const (
	unvisited = iota
	visiting
	built
	broken
)

// Build validates a rule file and declares its descriptors. Transform and
// factory names are resolved against registry (transforms.Builtins() when nil).
// The catalog is nil when any error diagnostic was reported.
func Build(f *File, registry *transforms.Registry) (*Catalog, *diagnostic.Diagnostics) {
	res := &diagnostic.Diagnostics{}
	if f == nil {
		res.AddError("file_is_nil", "rule file is nil", "", "")
		return nil, res
	}

	if registry == nil {
		registry = transforms.Builtins()
	}

	if f.Version != SupportedVersion {
		res.AddError("unsupported_version", fmt.Sprintf("unsupported rule file version %q", f.Version), "", "")
		return nil, res
	}

	b := &builder{
		res:      res,
		registry: registry,
		cat: &Catalog{
			descriptors: make(map[string]*convert.Descriptor),
			defs:        make(map[string]*ConverterDef),
			layouts:     make(map[string]*fixedwidth.Layout),
		},
		state:   make(map[string]int),
		entries: make(map[string]int),
	}

	b.collectLayouts(f.Layouts)
	b.collectConverters(f.Converters)

	for _, name := range b.cat.names {
		b.build(name, nil)
	}

	if !res.HasErrors() {
		b.compile()
	}

	if res.HasErrors() {
		return nil, res
	}

	return b.cat, res
}

func (b *builder) collectLayouts(layouts []*fixedwidth.Layout) {
	for i, l := range layouts {
		if l == nil || l.Name == "" {
			b.res.AddError("invalid_layout", fmt.Sprintf("layouts[%d] has no name", i), "", "")
			continue
		}

		if _, ok := b.cat.layouts[l.Name]; ok {
			b.res.AddError("duplicate_layout", fmt.Sprintf("duplicate layout %q", l.Name), "", "")
			continue
		}

		err := l.Validate()
		if err != nil {
			b.res.AddError("invalid_layout", fmt.Sprintf("layout %q: %v", l.Name, err), "", "")
			continue
		}

		b.cat.layouts[l.Name] = l
	}
}

func (b *builder) collectConverters(defs []ConverterDef) {
	for i := range defs {
		def := defs[i]

		if def.Name == "" {
			b.res.AddError("missing_name", fmt.Sprintf("converters[%d] has no name", i), "", "")
			continue
		}

		if _, ok := b.cat.defs[def.Name]; ok {
			b.res.AddError("duplicate_converter", fmt.Sprintf("duplicate converter %q", def.Name), def.Name, "")
			continue
		}

		b.cat.defs[def.Name] = &def
		b.cat.names = append(b.cat.names, def.Name)
	}
}

// build declares the descriptor for name after its parent chain.
func (b *builder) build(name string, chain []string) {
	switch b.state[name] {
	case built, broken:
		return
	case visiting:
		cycle := append(append([]string(nil), chain[indexOf(chain, name):]...), name)
		b.res.AddError("cyclic_extends", "cyclic extends: "+strings.Join(cycle, " -> "), name, "")

		return
	}

	b.state[name] = visiting
	def := b.cat.defs[name]

	var parent *convert.Descriptor

	if def.Extends != "" {
		if _, ok := b.cat.defs[def.Extends]; !ok {
			b.res.AddError("unknown_parent", fmt.Sprintf("extends unknown converter %q", def.Extends), name, "",
				match.Suggest(def.Extends, b.cat.names, match.DefaultSuggestions)...)
			b.state[name] = broken

			return
		}

		b.build(def.Extends, append(chain, name))

		if b.state[def.Extends] != built {
			b.state[name] = broken
			return
		}

		parent = b.cat.descriptors[def.Extends]
	}

	d, ok := b.declare(def, parent)
	if !ok {
		b.state[name] = broken
		return
	}

	b.cat.descriptors[name] = d
	b.state[name] = built
}

func (b *builder) declare(def *ConverterDef, parent *convert.Descriptor) (*convert.Descriptor, bool) {
	ok := true

	if parent != nil {
		pdef := b.cat.defs[def.Extends]

		for _, side := range []struct{ name, own, inherited string }{
			{"source", def.Source, pdef.Source},
			{"target", def.Target, pdef.Target},
		} {
			if side.own != "" && side.own != side.inherited {
				b.res.AddError("extends_kind_mismatch",
					fmt.Sprintf("%s kind %q differs from %q of parent %q", side.name, side.own, side.inherited, def.Extends),
					def.Name, "")

				ok = false
			}
		}

		def.Source, def.Target = pdef.Source, pdef.Target
	}

	if def.Source == "" {
		def.Source = mapaccess.Kind
	}

	if def.Target == "" {
		def.Target = mapaccess.Kind
	}

	entries := make([]convert.Entry, 0, len(def.Rules))
	seen := make(map[string]int, len(def.Rules))

	for i := range def.Rules {
		rd := &def.Rules[i]

		if prev, dup := seen[rd.Target]; dup && rd.Target != "" {
			b.res.AddWarning("shadowed_rule",
				fmt.Sprintf("target %q is also written by rules[%d]; the later rule wins", rd.Target, prev),
				def.Name, ruleLabel(i))
		}

		seen[rd.Target] = i

		e, valid := b.entry(def.Name, i, rd)
		if !valid {
			ok = false
			continue
		}

		entries = append(entries, e)
	}

	opts := b.options(def)

	if parent != nil {
		b.entries[def.Name] = b.entries[def.Extends] + len(entries)

		return parent.Extend(def.Name, entries, opts...), ok
	}

	src, srcOK := b.accessor(def.Name, "source", def.Source)
	dst, dstOK := b.accessor(def.Name, "target", def.Target)

	b.entries[def.Name] = len(entries)

	return convert.Define(def.Name, src, dst, entries, opts...), ok && srcOK && dstOK
}

func (b *builder) accessor(conv, side, kind string) (convert.Accessor, bool) {
	acc, err := accessorFor(kind, b.cat.layouts)
	if err == nil {
		return acc, true
	}

	switch {
	case errors.Is(err, errUnknownLayout):
		b.res.AddError("unknown_layout", fmt.Sprintf("%s: %v", side, err), conv, "",
			match.Suggest(strings.TrimPrefix(kind, fixedwidthPrefix), layoutNames(b.cat.layouts), match.DefaultSuggestions)...)
	case errors.Is(err, errUnknownKind):
		b.res.AddError("unknown_kind", fmt.Sprintf("%s: %v", side, err), conv, "",
			match.Suggest(kind, knownKinds(b.cat.layouts), match.DefaultSuggestions)...)
	default:
		b.res.AddError("invalid_layout", fmt.Sprintf("%s: %v", side, err), conv, "")
	}

	return nil, false
}

// entry turns a rule definition into a convert entry.
func (b *builder) entry(conv string, i int, rd *RuleDef) (convert.Entry, bool) {
	label := ruleLabel(i)

	if rd.Target == "" {
		b.res.AddError("invalid_rule", "rule must specify target", conv, label)
		return convert.Entry{}, false
	}

	keys := rd.valueRules()
	if len(keys) > 1 {
		b.res.AddError("invalid_rule", "conflicting value rules: "+strings.Join(keys, ", "), conv, label)
		return convert.Entry{}, false
	}

	parts := []any{rd.Target}

	var (
		value    convert.ValueRule
		hasValue bool
		ok       = true
	)

	if len(keys) == 1 {
		value, ok = b.valueRule(conv, label, rd)
		hasValue = true
	}

	switch {
	case rd.Source == NoSourceKeyword:
		parts = append(parts, convert.NoSource)
	case rd.Source != "":
		parts = append(parts, rd.Source)
	case hasValue && (value.Kind() == convert.KindStaticDefault || value.Kind() == convert.KindFactoryDefault):
		parts = append(parts, convert.NoSource)
	case hasValue:
		parts = append(parts, rd.Target)
	}

	if hasValue {
		parts = append(parts, value)
	}

	for _, opt := range fieldOptions(rd) {
		parts = append(parts, opt)
	}

	return convert.E(parts...), ok
}

func (b *builder) valueRule(conv, label string, rd *RuleDef) (convert.ValueRule, bool) {
	switch {
	case rd.Default != nil:
		return convert.Default(rd.Default.Value), true

	case rd.Factory != "":
		vr, err := b.registry.Factory(rd.Factory)
		if err != nil {
			b.res.AddError("unknown_factory", fmt.Sprintf("unknown factory %q", rd.Factory), conv, label,
				match.Suggest(rd.Factory, b.registry.FactoryNames(), match.DefaultSuggestions)...)

			return vr, false
		}

		return vr, true

	case rd.Transform != "":
		vr, err := b.registry.Transform(rd.Transform)
		if err != nil {
			b.res.AddError("unknown_transform", fmt.Sprintf("unknown transform %q", rd.Transform), conv, label,
				match.Suggest(rd.Transform, b.registry.Names(), match.DefaultSuggestions)...)

			return vr, false
		}

		return vr, true

	case rd.Expr != "":
		vr, err := b.registry.Expr(rd.Expr)
		if err != nil {
			b.res.AddError("invalid_expr", err.Error(), conv, label)
			return vr, false
		}

		return vr, true
	}

	name := rd.Nested
	if _, ok := b.cat.defs[name]; !ok {
		b.res.AddError("unknown_converter", fmt.Sprintf("nested converter %q is not declared", name), conv, label,
			match.Suggest(name, b.cat.names, match.DefaultSuggestions)...)

		return convert.ValueRule{}, false
	}

	// resolved at conversion time, so converters may nest themselves or
	// ones declared later in the file
	descriptors := b.cat.descriptors

	return convert.NestedFunc(func() *convert.Descriptor { return descriptors[name] }).Named(name), true
}

func fieldOptions(rd *RuleDef) []convert.FieldOption {
	var opts []convert.FieldOption

	if rd.Required {
		opts = append(opts, convert.Required(convert.NotEmpty))
	}

	if rd.FilterEmpty {
		opts = append(opts, convert.Filter(convert.NotEmpty))
	}

	if rd.Sort {
		opts = append(opts, convert.SortNatural())
	}

	if rd.MaxLen != 0 {
		opts = append(opts, convert.MaxLen(rd.MaxLen))
	}

	if rd.Pluralize {
		opts = append(opts, convert.Pluralize())
	}

	if rd.Collection {
		opts = append(opts, convert.Collection())
	}

	if rd.Merge {
		opts = append(opts, convert.Merge())
	}

	if rd.WantsNil {
		opts = append(opts, convert.WantsNil())
	}

	if rd.SkipWash {
		opts = append(opts, convert.SkipWash())
	}

	return opts
}

func (b *builder) options(def *ConverterDef) []convert.DescriptorOption {
	o := def.Options

	var opts []convert.DescriptorOption

	if o.IncludeNils != nil {
		opts = append(opts, convert.IncludeNils(*o.IncludeNils))
	}

	if o.IncludeEmptyStrings != nil {
		opts = append(opts, convert.IncludeEmptyStrings(*o.IncludeEmptyStrings))
	}

	if o.NilsToBlank {
		opts = append(opts, convert.NilsToBlank(true))
	}

	if o.NoSourceDefault != nil {
		opts = append(opts, convert.NoSourceDefault(o.NoSourceDefault.Value))
	}

	if o.CopyOnly {
		opts = append(opts, convert.CopyOnly())
	}

	if o.TrimStrings {
		opts = append(opts, convert.Washer(primitive.CategoryString, func(v any) any {
			return strings.TrimSpace(v.(string)) //nolint:forcetypeassert
		}))
	}

	if o.RoundFloats != nil {
		scale := math.Pow10(*o.RoundFloats)

		opts = append(opts, convert.Washer(primitive.CategoryFloat, func(v any) any {
			switch f := v.(type) {
			case float64:
				return math.Round(f*scale) / scale
			case float32:
				return float32(math.Round(float64(f)*scale) / scale)
			}

			return v
		}))
	}

	return opts
}

// compile builds every rule table so malformed rules surface at load time.
func (b *builder) compile() {
	for _, name := range b.cat.names {
		d := b.cat.descriptors[name]

		_, err := d.Rules()
		if err == nil {
			continue
		}

		var specErr *convert.SpecError
		if !errors.As(err, &specErr) {
			b.res.AddError("invalid_rule", err.Error(), name, "")
			continue
		}

		own := specErr.Index - (b.entries[name] - len(b.cat.defs[name].Rules))
		if own < 0 {
			// reported for the parent already
			continue
		}

		b.res.AddError("invalid_rule", specErr.Reason, name, ruleLabel(own))
	}
}

func ruleLabel(i int) string {
	return fmt.Sprintf("rules[%d]", i)
}

func layoutNames(layouts map[string]*fixedwidth.Layout) []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}

	return names
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}

	return 0
}
