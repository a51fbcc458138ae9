package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"rulemapper/accessor/tabular"
	"rulemapper/convert"
	"rulemapper/internal/catalog"
	"rulemapper/internal/codec"
)

// fromSQLite selects the SQLite input mode of the convert command.
const fromSQLite = "sqlite"

var errNoQuery = errors.New("--from sqlite needs --dsn and --query")

type convertFlags struct {
	converter string
	in        string
	out       string
	from      string
	to        string
	dsn       string
	query     string
	vars      map[string]string
	overrides map[string]string
}

func newConvertCmd(g *globals) *cobra.Command {
	f := &convertFlags{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert records with a converter",
		Long: `Read records, run a converter over each of them and write the results.

Input and output formats default to the natural format of the converter's
source and target kinds: json for map, csv for tabular, xml for xml:<root>
and fixed for fixedwidth:<layout>. A JSON or YAML list is converted record by
record; CSV and fixed-width input is always a list.

Examples:
  rulemapper convert -r rules.yaml -n Order --in order.json
  rulemapper convert -r rules.yaml -n Customer --in customers.csv --to yaml
  rulemapper convert -r rules.yaml -n Customer --from sqlite --dsn app.db \
      --query "SELECT id, name FROM customers"
  rulemapper convert -r rules.yaml -n Order --var channel=cli --set region=eu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, g, f)
		},
	}

	cmd.Flags().StringVarP(&f.converter, "converter", "n", "", "converter name (required)")
	cmd.Flags().StringVarP(&f.in, "in", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVarP(&f.out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&f.from, "from", "", "input format: "+strings.Join(codec.Formats(), ", ")+" or "+fromSQLite)
	cmd.Flags().StringVar(&f.to, "to", "", "output format: "+strings.Join(codec.Formats(), ", "))
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "SQLite database for --from sqlite")
	cmd.Flags().StringVar(&f.query, "query", "", "SQL query for --from sqlite")
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "fallback source value, key=value (repeatable)")
	cmd.Flags().StringToStringVar(&f.overrides, "set", nil, "override a target value, path=value (repeatable)")

	_ = cmd.MarkFlagRequired("converter")

	return cmd
}

func runConvert(cmd *cobra.Command, g *globals, f *convertFlags) error {
	path, err := g.rulesFile()
	if err != nil {
		return err
	}

	logger := g.logger(cmd)

	cat, diags, err := catalog.Load(path, nil)
	if err != nil {
		return err
	}

	for _, w := range diags.Warnings {
		logger.Warn().Str("code", w.Code).Msg(w.String())
	}

	d, err := cat.Lookup(f.converter)
	if err != nil {
		return err
	}

	batch, err := readInput(cmd, f, d.Source().Kind())
	if err != nil {
		return err
	}

	out := codec.ForKind(d.Target().Kind())
	if f.to != "" {
		out, err = codec.ParseFormat(f.to)
		if err != nil {
			return err
		}
	}

	opts := []convert.CallOption{convert.WithLogger(logger)}
	if len(f.vars) > 0 {
		opts = append(opts, convert.WithVars(anyMap(f.vars)))
	}

	if len(f.overrides) > 0 {
		opts = append(opts, convert.WithOverrides(anyMap(f.overrides)))
	}

	result := codec.Batch{Many: batch.Many, Records: make([]any, len(batch.Records))}

	for i, rec := range batch.Records {
		result.Records[i], err = convert.Convert(d, rec, opts...)
		if err != nil {
			if batch.Many {
				return fmt.Errorf("record %d: %w", i, err)
			}

			return err
		}
	}

	logger.Info().Str("converter", d.Name()).Int("records", len(result.Records)).Msg("converted")

	w := cmd.OutOrStdout()

	if f.out != "-" {
		file, err := os.Create(f.out)
		if err != nil {
			return err
		}
		defer file.Close()

		w = file
	}

	return codec.Encode(w, out, result)
}

func readInput(cmd *cobra.Command, f *convertFlags, kind string) (codec.Batch, error) {
	if f.from == fromSQLite {
		if f.dsn == "" || f.query == "" {
			return codec.Batch{}, errNoQuery
		}

		return querySQLite(cmd.Context(), f.dsn, f.query, kind)
	}

	in := codec.ForKind(kind)

	if f.from != "" {
		var err error

		in, err = codec.ParseFormat(f.from)
		if err != nil {
			return codec.Batch{}, err
		}
	}

	var r io.Reader = cmd.InOrStdin()

	if f.in != "-" {
		file, err := os.Open(f.in)
		if err != nil {
			return codec.Batch{}, err
		}
		defer file.Close()

		r = file
	}

	return codec.Decode(r, in, kind)
}

// querySQLite runs query and returns its rows as records of kind.
func querySQLite(ctx context.Context, dsn, query, kind string) (codec.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return codec.Batch{}, fmt.Errorf("open %s: %w", dsn, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return codec.Batch{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	scanned, err := tabular.ScanRows(rows)
	if err != nil {
		return codec.Batch{}, err
	}

	b := codec.Batch{Many: true, Records: make([]any, len(scanned))}

	for i, row := range scanned {
		b.Records[i], err = codec.Adapt(row, kind)
		if err != nil {
			return codec.Batch{}, fmt.Errorf("row %d: %w", i, err)
		}
	}

	return b, nil
}

func anyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
