package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gematik/zero-authui/pkg/authui"
	"github.com/gematik/zero-authui/pkg/util"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the authentication pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		slog.Info("Loading config", "config_path", configPath)

		s, err := authui.NewFromConfigFile(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("Starting server", "address", s.Config.Address, "base_url", s.Config.Web.BaseURL)
		return s.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringP("config", "c", util.GetEnv("AUTHUI_CONFIG_PATH", "config/authui.yaml"), "path to the config file")
	rootCmd.AddCommand(serveCmd)
}
