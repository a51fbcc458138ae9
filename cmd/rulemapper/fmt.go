package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rulemapper/internal/ruleset"
)

func newFmtCmd(g *globals) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt",
		Short: "Rewrite a rule file in canonical form",
		Long: `Print the rule file with every rule in its shortest form:
a bare target, a [target, source] pair, or a mapping.

Examples:
  rulemapper fmt --rules rules.yaml
  rulemapper fmt --rules rules.yaml -w`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, path, err := loadFile(g)
			if err != nil {
				return err
			}

			data, err := ruleset.Marshal(f)
			if err != nil {
				return fmt.Errorf("format %s: %w", path, err)
			}

			if !write {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			return os.WriteFile(path, data, info.Mode().Perm())
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the rule file")

	return cmd
}
