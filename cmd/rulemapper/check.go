package main

import (
	"errors"

	"github.com/spf13/cobra"

	"rulemapper/internal/diagnostic"
	"rulemapper/internal/ruleset"
)

const (
	checkMark = "✓"
	crossMark = "✗"
	warnMark  = "!"
)

var errCheckFailed = errors.New("rule file has errors")

func newCheckCmd(g *globals) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a rule file",
		Long: `Validate a rule file and print its diagnostics.

Checks:
  - YAML syntax and rule shapes
  - Converter names, extends chains and nested references
  - Transform, factory and expression names
  - Source and target kinds, fixed-width layouts

Examples:
  rulemapper check --rules rules.yaml
  rulemapper check --rules rules.yaml --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, path, err := loadFile(g)
			if err != nil {
				return err
			}

			printf(cmd, "Checking %s...\n\n", path)

			cat, diags := ruleset.Build(f, nil)

			for _, d := range diags.All() {
				mark := crossMark

				switch d.Severity {
				case diagnostic.DiagnosticWarning:
					mark = warnMark
				case diagnostic.DiagnosticInfo:
					mark = " "
				}

				printf(cmd, "  %s %s\n", mark, d.String())
			}

			if diags.HasErrors() {
				printf(cmd, "\n%d error(s), %d warning(s)\n", len(diags.Errors), len(diags.Warnings))
				return errCheckFailed
			}

			if strict && len(diags.Warnings) > 0 {
				printf(cmd, "\n%d warning(s) in strict mode\n", len(diags.Warnings))
				return errCheckFailed
			}

			for _, name := range cat.Names() {
				def, _ := cat.Def(name)
				printf(cmd, "  %s %s (%s -> %s, %d rules)\n", checkMark, name, def.Source, def.Target, len(def.Rules))
			}

			printf(cmd, "\nRule file valid: %d converter(s)\n", cat.Len())

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	return cmd
}
