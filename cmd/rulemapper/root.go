package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rulemapper/internal/config"
	"rulemapper/internal/ruleset"
)

var errNoRules = errors.New("no rule file: pass --rules or set " + config.EnvRulesPath)

// globals are the persistent flags shared by all commands.
type globals struct {
	rulesPath string
	logLevel  string
}

// rulesFile returns --rules, falling back to the environment.
func (g *globals) rulesFile() (string, error) {
	if g.rulesPath != "" {
		return g.rulesPath, nil
	}

	if p := os.Getenv(config.EnvRulesPath); p != "" {
		return p, nil
	}

	return "", errNoRules
}

// logger writes human-readable logs to the command's error stream.
func (g *globals) logger(cmd *cobra.Command) zerolog.Logger {
	return config.LoggingConfig{Level: g.logLevel, Format: "console"}.NewLogger(cmd.ErrOrStderr())
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "rulemapper",
		Short: "Declarative field mapping between record formats",
		Long: `rulemapper converts records using rules declared in a YAML rule file.

Each converter in the file names a source kind, a target kind and an ordered
list of rules. A rule copies, defaults, transforms or nests one target field.

Quick start:
  rulemapper check   --rules rules.yaml             # Validate a rule file
  rulemapper convert --rules rules.yaml -n Order    # Convert stdin to stdout
  rulemapper serve   --config rulemapper.yaml       # Start the HTTP API
  rulemapper scaffold --source pkg.A --target pkg.B # Draft rules from Go types`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&g.rulesPath, "rules", "r", "", "rule file path (default $"+config.EnvRulesPath+")")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newCheckCmd(g),
		newFmtCmd(g),
		newInspectCmd(g),
		newConvertCmd(g),
		newServeCmd(g),
		newScaffoldCmd(),
		newVersionCmd(),
	)

	return root
}

// loadFile parses the rule file without building it.
func loadFile(g *globals) (*ruleset.File, string, error) {
	path, err := g.rulesFile()
	if err != nil {
		return nil, "", err
	}

	f, err := ruleset.Load(path)
	if err != nil {
		return nil, path, err
	}

	return f, path, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
