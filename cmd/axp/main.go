// Package main provides the axp CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lmmx/arxiv-explorer/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	dataDirFlag string
	logLevel    string
	logFormat   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra errors (unknown flags, missing args) are not printed otherwise.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "axp",
	Short: "Explore arXiv by subject and month",
	Long: `axp downloads monthly arXiv partitions by subject, embeds their
abstracts with a local model, lays them out in 2D, and answers semantic
search and topic queries over the selection.

Everything expensive is cached under the data directory: partitions,
embeddings (per partition, computed once per paper) and projections (per
selection). All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env file if present (for HF_TOKEN, OLLAMA_HOST)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default $AXP_DATA_DIR or ~/.local/share/axp)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console or json")
	rootCmd.Version = Version
}

// mustLoadConfig loads the global config with flag overrides, exits on error.
func mustLoadConfig() *config.GlobalConfig {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if dataDirFlag != "" {
		cfg.DataDir = config.ExpandPath(dataDirFlag)
	}
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "invalid config: %v", err)
	}
	return cfg
}

// newLogger builds a zap logger writing to stderr, keeping stdout for output.
func newLogger(level, format string) *zap.Logger {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.WarnLevel)
	}

	var zapConfig zap.Config
	if format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = lvl
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
