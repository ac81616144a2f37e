package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/neovance/neovance-go/internal/logger"
)

var (
	configFile string
	logLevel   string
	logJSON    bool
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "neovance",
		Short: "Real-time NICU vital-sign monitoring and sepsis alerting",
		Long: `neovance ingests vital-sign readings from bedside monitors, maintains
per-patient rolling baselines, scores sepsis risk, and manages the
human-in-the-loop alert lifecycle for clinicians.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")

	root.AddCommand(serveCommand())
	return root
}

func newLogger() logger.Logger {
	level := logger.LogLevelInfo
	switch logLevel {
	case "debug":
		level = logger.LogLevelDebug
	case "warn":
		level = logger.LogLevelWarn
	case "error":
		level = logger.LogLevelError
	}
	if logJSON {
		return logger.NewJSONLogger(os.Stdout, level, nil)
	}
	return logger.NewSlogLogger(os.Stdout, level, nil)
}
