package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"rulemapper/internal/catalog"
	"rulemapper/internal/config"
	"rulemapper/internal/metrics"
	"rulemapper/internal/ruleset"
	"rulemapper/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conversion API server",
		Long: `Start the rulemapper HTTP API.

The server will:
  - Load configuration from --config, or from RULEMAPPER_* environment variables
  - Load the rule file and reload it on change or SIGHUP when rules.watch is set
  - Serve POST /v1/convert/{name}, GET /v1/converters and /healthz
  - Expose Prometheus metrics when metrics.enabled is set

Environment variables:
  RULEMAPPER_RULES_PATH     - Rule file path (required without --rules)
  RULEMAPPER_SERVER_PORT    - Server port (default: 8080)
  RULEMAPPER_LOG_LEVEL      - Log level: debug, info, warn, error

Examples:
  rulemapper serve --config rulemapper.yaml
  RULEMAPPER_RULES_PATH=rules.yaml rulemapper serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.rulesPath != "" {
				// flag wins over file and environment
				os.Setenv(config.EnvRulesPath, g.rulesPath)
			}

			cfg, err := config.LoadWithFallback(cfgFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: environment only)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger := cfg.Logging.NewLogger(cmd.ErrOrStderr())

	holder, err := catalog.NewHolder(cfg.Rules.Path, nil, logger)
	if err != nil {
		return err
	}
	defer holder.Stop()

	deps := server.Deps{
		Catalog: holder,
		Config:  cfg.Server,
		Logger:  logger,
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		m := metrics.NewWithRegistry(reg)
		m.ObserveCatalog(holder.Get(), false)
		holder.OnChange(func(cat *ruleset.Catalog) { m.ObserveCatalog(cat, true) })

		deps.Metrics = m
		deps.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		deps.MetricsPath = cfg.Metrics.Path
	}

	if cfg.Rules.Watch {
		err = holder.WatchFile()
		if err != nil {
			return err
		}

		holder.WatchSignals()
	}

	logger.Info().
		Str("rules", holder.Path()).
		Int("converters", holder.Get().Len()).
		Bool("watch", cfg.Rules.Watch).
		Msg("rules loaded")

	srv := server.NewHTTPServer(cfg.Server, server.NewRouter(deps))

	return server.Run(ctx, srv, logger)
}
