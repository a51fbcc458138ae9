package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rulemapper/internal/analyze"
	"rulemapper/internal/diagnostic"
	"rulemapper/internal/ruleset"
	"rulemapper/internal/scaffold"
)

func newScaffoldCmd() *cobra.Command {
	var (
		source, target string
		dir, out       string
		opts           = scaffold.DefaultOptions()
	)

	cmd := &cobra.Command{
		Use:   "scaffold",
		Short: "Draft a rule file from two Go struct types",
		Long: `Draft a rule file that converts the map form of one Go struct into another.

Target fields are matched to source fields by their rule key (conv tag, json
tag, then field name). Equal and normalized-equal keys win; otherwise the most
similar key above --min-score is taken. Struct and list-of-struct fields get nested converters. Fields
left unmatched are reported with the closest candidates.

Examples:
  rulemapper scaffold --source example.com/shop.Order --target example.com/wh.Shipment
  rulemapper scaffold --source ./store.Order --target ./warehouse.Order --dir . -o rules.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := analyze.NewAnalyzer()
			a.Dir = dir

			src, err := a.LoadStruct(source)
			if err != nil {
				return err
			}

			tgt, err := a.LoadStruct(target)
			if err != nil {
				return err
			}

			file, diags, err := scaffold.Generate(src, tgt, opts)
			if err != nil {
				return err
			}

			for _, d := range diags.All() {
				mark := warnMark
				if d.Severity == diagnostic.DiagnosticInfo {
					mark = " "
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s\n", mark, d.String())
			}

			data, err := ruleset.Marshal(file)
			if err != nil {
				return err
			}

			data = append([]byte(fmt.Sprintf("# Drafted from %s to %s\n", src.ID, tgt.ID)), data...)

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source struct as <import path>.<Type>")
	cmd.Flags().StringVar(&target, "target", "", "target struct as <import path>.<Type>")
	cmd.Flags().StringVar(&dir, "dir", "", "directory package paths are resolved in (default: current)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the draft to a file instead of stdout")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", opts.MinScore, "minimum similarity for a fuzzy match")
	cmd.Flags().Float64Var(&opts.MinGap, "min-gap", opts.MinGap, "minimum lead of the best candidate over the runner-up")

	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
