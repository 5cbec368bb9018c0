package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/responder/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "responder",
		Short:         "Automated incident diagnosis and remediation",
		Version:       version.GitCommit,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		},
	}
	root.AddCommand(newServeCmd(), newParseCmd())
	return root
}

// setupLogger installs the default slog logger. format is "json" or "text".
func setupLogger(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
