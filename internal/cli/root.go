package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/config"
)

// app carries the state shared by every subcommand, resolved once in the
// root's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	devLog     bool

	cfg    config.Config
	logger *zap.Logger
}

// NewRootCmd creates the root jobpacer command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "jobpacer",
		Short: "Rate-governed admission and job polling for external services",
		Long: `jobpacer keeps calls to external services within their quotas and
drives long-running remote jobs to completion.

Each service has a named limiter (token bucket, sliding window or fixed
window). Calls are admitted through a gate that either waits for budget or
fails fast, and job status polls are paced through the same limiters.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a JSON or YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().BoolVar(&a.devLog, "dev-log", false, "human-readable development logging")

	root.AddCommand(
		newStatusCmd(a),
		newSimulateCmd(a),
		newReplayCmd(a),
		newServerCmd(a),
		newPollCmd(a),
		newGenerateCmd(a),
	)

	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.devLog {
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
