package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "varscope",
	Short: "varscope - recursive variable inspection over the Debug Adapter Protocol",
	Long: `varscope drives any DAP-compatible debug adapter (Delve, debugpy,
js-debug, java-debug) and, at every stop, fetches entire variable trees
in one pass instead of expanding them one level at a time.

Launch configurations live in a TOML, YAML, or JSON file; see
'varscope adapters' for the supported adapter kinds.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "varscope.toml", "launch configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(adaptersCmd)
	rootCmd.AddCommand(configsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
