package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/satquiz/internal/app"
	"github.com/abhisek/satquiz/internal/config"
	"github.com/abhisek/satquiz/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "satquiz",
	Short:         "Adaptive SAT practice quizzes",
	Long:          "satquiz assembles skill quizzes, grades them and tracks per-skill mastery levels.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite path or PostgreSQL DSN (overrides SATQUIZ_DB env var)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite or postgres (overrides SATQUIZ_DB_DRIVER)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides SATQUIZ_LOG_LEVEL)")

	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment, then applies flag overrides
// (highest priority).
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DB = v
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}

// openApp builds the service graph for one command invocation. The caller
// must Close it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg, logger, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}
