package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/terra-clan/pylearn-arcade/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "arcade",
	Short: "Python learning mini-games server",
	Long: `arcade serves the PyLearn mini-games: pair matching, indentation
fixing and algorithm step playback, reporting finished runs to the
reward service.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, contentCmd)
}

// loadConfig reads and validates configuration, then installs the JSON
// logger at the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	return cfg, nil
}
