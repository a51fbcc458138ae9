// Package scaffold drafts rule files from a pair of Go struct types.
//
// Every target field is matched against the source fields by rule key,
// first exactly or by normalized name, then by Levenshtein similarity.
// Accepted matches become copy rules; struct and list-of-struct fields get
// nested converters of their own. Fields without a confident match are left
// out of the draft and reported as warnings with the closest candidates.
package scaffold

import (
	"fmt"
	"strconv"

	"rulemapper/internal/analyze"
	"rulemapper/internal/diagnostic"
	"rulemapper/internal/match"
	"rulemapper/internal/ruleset"
)

// Diagnostic codes reported while drafting.
const (
	CodeUnmappedField = "unmapped_field"
	CodeFuzzyMatch    = "fuzzy_match"
	CodeKindMismatch  = "kind_mismatch"
)

// Options tune how eagerly fields are matched.
type Options struct {
	// MinScore is the minimum similarity for accepting a non-exact match.
	MinScore float64
	// MinGap is the minimum lead the best candidate needs over the runner-up.
	MinGap float64
	// MaxSuggestions caps the candidates listed for an unmapped field.
	MaxSuggestions int
}

// DefaultOptions returns the matching thresholds used by the CLI.
func DefaultOptions() Options {
	return Options{
		MinScore:       match.DefaultMinScore,
		MinGap:         match.DefaultMinGap,
		MaxSuggestions: match.DefaultSuggestions,
	}
}

type drafter struct {
	opts  Options
	file  *ruleset.File
	diags *diagnostic.Diagnostics
	pairs map[string]string // "src->tgt" -> converter name
	taken map[string]bool
}

// Generate drafts a rule file converting src records into tgt records.
// The root converter comes first, nested converters follow in the order
// they were discovered. Both types must be structs.
func Generate(src, tgt *analyze.TypeInfo, opts Options) (*ruleset.File, *diagnostic.Diagnostics, error) {
	for _, t := range []*analyze.TypeInfo{src, tgt} {
		if t.Deref() == nil || t.Deref().Kind != analyze.TypeKindStruct {
			return nil, nil, fmt.Errorf("%w: %s", analyze.ErrNotStruct, analyze.TypeString(t))
		}
	}

	d := &drafter{
		opts:  opts,
		file:  &ruleset.File{Version: "1"},
		diags: &diagnostic.Diagnostics{},
		pairs: make(map[string]string),
		taken: make(map[string]bool),
	}

	d.converter(src.Deref(), tgt.Deref())

	return d.file, d.diags, nil
}

// converter returns the name of the converter for the pair, drafting it on
// first use. Recursive pairs resolve to the converter being drafted.
func (d *drafter) converter(src, tgt *analyze.TypeInfo) string {
	key := src.ID.String() + "->" + tgt.ID.String()
	if name, ok := d.pairs[key]; ok {
		return name
	}

	name := d.name(src, tgt)
	d.pairs[key] = name

	idx := len(d.file.Converters)
	d.file.Converters = append(d.file.Converters, ruleset.ConverterDef{Name: name})

	rules := d.rules(name, src, tgt)
	d.file.Converters[idx].Rules = rules

	return name
}

// name picks a free converter name, preferring the target type's name.
func (d *drafter) name(src, tgt *analyze.TypeInfo) string {
	base := tgt.ID.Name
	if base == "" {
		base = "Converter"
	}

	candidates := []string{base, base + "From" + src.ID.Name}
	for _, c := range candidates {
		if !d.taken[c] {
			d.taken[c] = true
			return c
		}
	}

	for i := 2; ; i++ {
		c := candidates[1] + strconv.Itoa(i)
		if !d.taken[c] {
			d.taken[c] = true
			return c
		}
	}
}

func (d *drafter) rules(conv string, src, tgt *analyze.TypeInfo) []ruleset.RuleDef {
	sourceKeys := src.Keys()
	root := analyze.NewTypePath(tgt.ID.Name)

	var rules []ruleset.RuleDef

	for i := range tgt.Fields {
		tf := &tgt.Fields[i]
		targetKey := tf.Key()
		path := root.Field(targetKey).String()

		sourceKey, ok := d.pick(conv, path, targetKey, sourceKeys)
		if !ok {
			continue
		}

		rd := ruleset.RuleDef{Target: targetKey}
		if sourceKey != targetKey {
			rd.Source = sourceKey
		}

		sf, _ := src.Field(sourceKey)
		d.nest(conv, path, &rd, sf.Type, tf.Type)

		rules = append(rules, rd)
	}

	return rules
}

// pick chooses the source key for a target key, reporting why when none fits.
func (d *drafter) pick(conv, path, targetKey string, sourceKeys []string) (string, bool) {
	for _, k := range sourceKeys {
		if k == targetKey {
			return k, true
		}
	}

	if k, ok := match.FindNormalized(targetKey, sourceKeys); ok {
		d.diags.AddInfo(CodeFuzzyMatch, fmt.Sprintf("matched %q to source %q by normalized name", targetKey, k), conv, path)
		return k, true
	}

	candidates := match.RankCandidates(targetKey, sourceKeys)
	best := candidates.Best()

	if best != nil && best.Score >= d.opts.MinScore && !candidates.IsAmbiguous(d.opts.MinGap) {
		d.diags.AddInfo(CodeFuzzyMatch,
			fmt.Sprintf("matched %q to source %q (score %.2f)", targetKey, best.Name, best.Score),
			conv, path)

		return best.Name, true
	}

	var reason string

	switch {
	case best == nil:
		reason = "source has no fields"
	case candidates.IsAmbiguous(d.opts.MinGap) && best.Score >= d.opts.MinScore:
		reason = fmt.Sprintf("ambiguous: %q (%.2f) and %q (%.2f) are too close",
			candidates[0].Name, candidates[0].Score, candidates[1].Name, candidates[1].Score)
	default:
		reason = fmt.Sprintf("best match %q (%.2f) below threshold %.2f", best.Name, best.Score, d.opts.MinScore)
	}

	var suggestions []string
	for _, c := range candidates.AboveThreshold(match.DefaultSuggestScore).Top(d.opts.MaxSuggestions) {
		suggestions = append(suggestions, c.Name)
	}

	d.diags.AddWarning(CodeUnmappedField, fmt.Sprintf("target field %q: %s", targetKey, reason), conv, path, suggestions...)

	return "", false
}

// nest turns struct and list-of-struct pairs into nested rules.
func (d *drafter) nest(conv, path string, rd *ruleset.RuleDef, srcType, tgtType *analyze.TypeInfo) {
	s, t := srcType.Deref(), tgtType.Deref()
	if s == nil || t == nil {
		return
	}

	if srcType.IsList() != tgtType.IsList() {
		d.mismatch(conv, path, srcType, tgtType)
		return
	}

	if srcType.IsList() {
		rd.Collection = true
		s, t = s.ElemType.Deref(), t.ElemType.Deref()

		if s == nil || t == nil {
			return
		}
	}

	sStruct := s.Kind == analyze.TypeKindStruct
	tStruct := t.Kind == analyze.TypeKindStruct

	switch {
	case sStruct && tStruct && s.IsNamed() && t.IsNamed():
		rd.Nested = d.converter(s, t)
	case sStruct != tStruct:
		d.mismatch(conv, path, srcType, tgtType)
	}

	if rd.Nested == "" {
		// plain lists are copied as they are
		rd.Collection = false
	}
}

func (d *drafter) mismatch(conv, path string, srcType, tgtType *analyze.TypeInfo) {
	d.diags.AddWarning(CodeKindMismatch,
		fmt.Sprintf("source is %s but target is %s; the copied value needs a transform",
			analyze.TypeString(srcType), analyze.TypeString(tgtType)),
		conv, path)
}
