package main

import (
	"os"

	"github.com/gematik/zero-authui/pkg/oauth2session"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print new session cookie keys for the oauth2 section of the config",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := oauth2session.GenerateCookieKeys()
		if err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(keys)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
