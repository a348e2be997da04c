package main

import (
	"log/slog"
	"os"

	"github.com/gematik/zero-authui/pkg/prettylog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zero-authui",
	Short: "Authentication pages for applications signing in at a remote authorization server",
}

func main() {
	_ = godotenv.Load()

	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(prettylog.NewHandler(slog.LevelDebug))
		slog.SetDefault(logger)
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
