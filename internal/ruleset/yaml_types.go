package ruleset

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts a bare target, a [target] or [target, source]
// sequence, or a mapping.
func (r *RuleDef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var target string

		err := node.Decode(&target)
		if err != nil {
			return err
		}

		*r = RuleDef{Target: target}

		return nil

	case yaml.SequenceNode:
		var parts []string

		err := node.Decode(&parts)
		if err != nil {
			return fmt.Errorf("line %d: rule pair must hold strings: %w", node.Line, err)
		}

		switch len(parts) {
		case 1:
			*r = RuleDef{Target: parts[0]}
		case 2:
			*r = RuleDef{Target: parts[0], Source: parts[1]}
		default:
			return fmt.Errorf("line %d: expected [target] or [target, source], got %d items", node.Line, len(parts))
		}

		return nil

	case yaml.MappingNode:
		// plain alias avoids recursing into this method
		type plain RuleDef

		var p plain

		err := node.Decode(&p)
		if err != nil {
			return err
		}

		*r = RuleDef(p)

		return nil

	default:
		return fmt.Errorf("line %d: expected string, sequence or mapping for rule, got %v", node.Line, node.Kind)
	}
}

// MarshalYAML writes the shortest form that reads back to the same rule.
func (r RuleDef) MarshalYAML() (any, error) {
	type plain RuleDef

	bare := RuleDef{Target: r.Target, Source: r.Source}
	if !isSame(r, bare) {
		return plain(r), nil
	}

	if r.Source == "" {
		return r.Target, nil
	}

	return []string{r.Target, r.Source}, nil
}

func isSame(a, b RuleDef) bool {
	return a.Target == b.Target && a.Source == b.Source &&
		len(a.valueRules()) == 0 &&
		!a.Collection && !a.Required && !a.FilterEmpty && !a.Sort && a.MaxLen == 0 &&
		!a.Pluralize && !a.Merge && !a.WantsNil && !a.SkipWash
}

// UnmarshalYAML decodes any YAML value.
func (l *Literal) UnmarshalYAML(node *yaml.Node) error {
	var v any

	err := node.Decode(&v)
	if err != nil {
		return err
	}

	l.Value = v

	return nil
}

// MarshalYAML writes the wrapped value.
func (l Literal) MarshalYAML() (any, error) {
	return l.Value, nil
}
