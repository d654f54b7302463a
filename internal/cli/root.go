// Package cli implements the directshape command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/directshape/internal/config"
	"github.com/chazu/directshape/internal/logger"
	"github.com/chazu/directshape/pkg/engine"
	"github.com/chazu/directshape/pkg/kernel/sdfx"
	"github.com/spf13/cobra"
)

type cfgCtxKey struct{}

// RootCmd returns the directshape command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "directshape",
		Short: "Register scripted geometry as direct shapes",
		Long: `directshape evaluates a geometry script and registers every
direct-shape request in a host document. Bodies are recentered before the
STL round trip so precision is kept far from the origin.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	root.PersistentFlags().Bool("debug", false, "shorthand for --log-level debug")

	root.AddCommand(
		RunCmd(),
		NormalizeCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and installs the
// logger in the command context.
func setup(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = string(logger.DebugLevel)
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	lcfg := logger.DefaultConfig()
	lcfg.Level = logger.ParseLevel(cfg.Log.Level)
	lcfg.JSON = cfg.Log.JSON
	lcfg.Output = cmd.ErrOrStderr()
	log := logger.NewLogger(lcfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = context.WithValue(ctx, cfgCtxKey{}, cfg)
	cmd.SetContext(ctx)
	return nil
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(cfgCtxKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// evaluateFile runs the script at path and returns its shape requests.
func evaluateFile(ctx context.Context, cfg *config.Config, k *sdfx.SdfxKernel, path string) (*engine.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	eng := engine.NewEngine(k,
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithDefaultCategory(cfg.Host.DefaultCategory),
	)
	p, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		log := logger.FromContext(ctx)
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			log.Error("script error", "file", path, "line", e.Line, "message", e.Message)
			errs[i] = e
		}
		return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}
	logger.FromContext(ctx).Debug("script evaluated", "file", path, "requests", len(p.Requests))
	return p, nil
}
