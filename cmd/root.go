// Package cmd defines and implements the CLI commands for the lzhbrowser executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhhtdm/lzhbrowser/internal/config"
	"github.com/zhhtdm/lzhbrowser/internal/logging"
)

var cfgFile string

// runtimeDeps holds what every subcommand needs: parsed configuration and a
// ready logger.
type runtimeDeps struct {
	cfg    config.Config
	logger *zap.Logger
}

func loadRuntime() (runtimeDeps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return runtimeDeps{}, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return runtimeDeps{}, fmt.Errorf("init logger: %w", err)
	}
	return runtimeDeps{cfg: cfg, logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lzhbrowser",
		Short: "Fetch fully rendered HTML through managed headless Chrome environments.",
		Long: `lzhbrowser keeps two long-lived headless Chrome environments alive, one
connecting directly and one through a proxy, and routes each fetch to the
right one based on a glob whitelist. Concurrency is bounded and transient
failures are retried.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
