package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chazu/nodes/internal/config"
	"github.com/chazu/nodes/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Build and evaluate node graphs",
	Long: `nodes stores dataflow graphs of nodes and ports and evaluates them on demand.
Graphs are described with Lisp session scripts; see the examples directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a nodes.yaml config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides config)")
}

// loadConfig reads --config and applies the logging overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	return cfg, cfg.Validate()
}

// newAppFromFlags builds an App from the command's config and flags. Logs go
// to the command's stderr so stdout carries only results.
func newAppFromFlags(cmd *cobra.Command) (*App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, logger))
	return NewApp(cfg, logger), nil
}

// loadScriptFile reads path and runs it through app. Script errors are
// written to cmd's stderr and returned as a single error.
func loadScriptFile(cmd *cobra.Command, app *App, path string) (ScriptResult, error) {
	logger := logging.FromContext(cmd.Context())
	source, err := os.ReadFile(path)
	if err != nil {
		return ScriptResult{}, fmt.Errorf("failed to read script: %w", err)
	}
	logger.Debug("loading script", "path", path, "bytes", len(source))
	res := app.LoadScript(string(source))
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			if e.Line > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %s\n", path, e.Line, e.Message)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, e.Message)
			}
		}
		return res, fmt.Errorf("%s: %d script error(s)", path, len(res.Errors))
	}
	return res, nil
}
