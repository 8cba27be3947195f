package dietbot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/config"
)

var (
	dbPath     string
	configPath string
	logLevel   string
)

var (
	levelVar = new(slog.LevelVar)
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
)

var rootCmd = &cobra.Command{
	Use:   "dietbot",
	Short: "dietbot runs the diet tracking chat bot and inspects its data",
	Long: "dietbot is a chat bot that logs meals from photos and text, tracks calories " +
		"and macros against a personal daily target and reports AI usage costs.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		lvl, err := config.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		levelVar.Set(lvl)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(logger)
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}
