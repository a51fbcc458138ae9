package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"rulemapper/internal/catalog"
)

func newInspectCmd(g *globals) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "inspect [converter...]",
		Short: "Show the compiled rule tables of converters",
		Long: `Show the rules each converter runs, inherited rules included,
in the order they are applied.

Examples:
  rulemapper inspect --rules rules.yaml
  rulemapper inspect --rules rules.yaml Order --dump`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.rulesFile()
			if err != nil {
				return err
			}

			cat, _, err := catalog.Load(path, nil)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				names = cat.Names()
			}

			cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}

			for _, name := range names {
				d, err := cat.Lookup(name)
				if err != nil {
					return err
				}

				rules, err := d.Rules()
				if err != nil {
					return fmt.Errorf("inspect %s: %w", name, err)
				}

				printf(cmd, "%s (%s -> %s)\n", d.Name(), d.Source().Kind(), d.Target().Kind())

				if dump {
					cfg.Fdump(cmd.OutOrStdout(), rules)
					continue
				}

				for _, r := range rules {
					printf(cmd, "  %3d  %s\n", r.Index, r)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "dump the full rule structures")

	return cmd
}
