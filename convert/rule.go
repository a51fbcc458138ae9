package convert

import (
	"fmt"

	"rulemapper/fieldpath"
)

// Rule is the canonical form of one Entry.
type Rule struct {
	// Index is the position of the entry, counting parent entries first.
	Index  int
	Target fieldpath.Path
	// Source is empty when NoSource is set.
	Source     fieldpath.Path
	NoSource   bool
	Value      ValueRule
	Collection bool
	Options    FieldOptions
}

// SourceSpec renders the source path or "NO_SOURCE".
func (r Rule) SourceSpec() string {
	if r.NoSource {
		return NoSource.String()
	}

	return r.Source.String()
}

func (r Rule) String() string {
	s := fmt.Sprintf("%s <- %s (%s)", r.Target, r.SourceSpec(), r.Value)
	if r.Collection {
		s += " [collection]"
	}

	return s
}
