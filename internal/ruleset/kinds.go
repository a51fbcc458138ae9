package ruleset

import (
	"errors"
	"fmt"
	"strings"

	"rulemapper/accessor/fixedwidth"
	"rulemapper/accessor/mapaccess"
	"rulemapper/accessor/tabular"
	"rulemapper/accessor/xmlaccess"
	"rulemapper/convert"
)

const (
	xmlPrefix        = "xml:"
	fixedwidthPrefix = "fixedwidth:"
)

var (
	errUnknownKind   = errors.New("unknown kind")
	errUnknownLayout = errors.New("unknown layout")
)

// accessorFor builds the accessor named by a source or target kind.
func accessorFor(kind string, layouts map[string]*fixedwidth.Layout) (convert.Accessor, error) {
	switch {
	case kind == mapaccess.Kind:
		return mapaccess.New(), nil

	case kind == tabular.Kind:
		return tabular.New(), nil

	case strings.HasPrefix(kind, xmlPrefix):
		root := strings.TrimPrefix(kind, xmlPrefix)
		if root == "" {
			return nil, fmt.Errorf("%w %q: missing root tag", errUnknownKind, kind)
		}

		return xmlaccess.New(root), nil

	case strings.HasPrefix(kind, fixedwidthPrefix):
		name := strings.TrimPrefix(kind, fixedwidthPrefix)

		layout, ok := layouts[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", errUnknownLayout, name)
		}

		return fixedwidth.New(layout)
	}

	return nil, fmt.Errorf("%w %q", errUnknownKind, kind)
}

// knownKinds lists kind spellings for suggestions.
func knownKinds(layouts map[string]*fixedwidth.Layout) []string {
	kinds := []string{mapaccess.Kind, tabular.Kind, xmlPrefix + "root"}
	for name := range layouts {
		kinds = append(kinds, fixedwidthPrefix+name)
	}

	return kinds
}
