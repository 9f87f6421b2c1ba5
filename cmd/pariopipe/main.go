package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/logging"
	"github.com/pario-ai/pariopipe/pkg/registry"
)

var version = "dev"

// app holds what the subcommands share. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	root       string
	configPath string
	verbose    bool

	logger    *slog.Logger
	logCloser io.Closer
	registry  *registry.Registry
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "pariopipe",
		Short:         "Model routing and cost control for the analysis pipeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.logCloser.Close()
		},
	}

	root.PersistentFlags().StringVar(&a.root, "root", ".", "project root")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to pipeline config file (default: <root>/config/pipeline.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newValidateCmd(a),
		newResolveCmd(a),
		newFallbacksCmd(a),
		newCostCmd(a),
		newStatsCmd(a),
		newBudgetCmd(a),
		newTopCmd(a),
		newMCPCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	abs, err := filepath.Abs(a.root)
	if err != nil {
		return fmt.Errorf("project root: %w", err)
	}
	a.root = abs

	// The registry and the monitor both locate the config from the root;
	// an explicit path reaches them through the environment.
	if a.configPath != "" {
		p, err := filepath.Abs(a.configPath)
		if err != nil {
			return fmt.Errorf("config path: %w", err)
		}
		if err := os.Setenv(config.EnvConfigPath, p); err != nil {
			return err
		}
	}

	cfg, _, err := config.LoadForRoot(a.root)
	if err != nil {
		cfg = config.Default()
	}
	logCfg := cfg.Logging
	if a.verbose {
		logCfg.Level = "debug"
	}
	logger, closer, err := logging.New(logCfg, a.root)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.logger = logger
	a.logCloser = closer

	a.registry = registry.Initialize(registry.RootSource{Root: a.root}, logger)
	return nil
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
