// Package cli builds the txgate command tree.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles every txgate subcommand.
func NewRootCommand(stdout io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = os.Stdout
	}
	root := &cobra.Command{
		Use:           "txgate",
		Short:         "Transaction approval gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)

	api := &apiOptions{
		BaseURL:   envOr("TXGATE_URL", "http://localhost:3001/api"),
		TokenPath: envOr("TXGATE_TOKEN_FILE", ""),
	}
	root.PersistentFlags().StringVar(&api.BaseURL, "url", api.BaseURL, "API base URL (env TXGATE_URL)")
	root.PersistentFlags().StringVar(&api.TokenPath, "token-file", api.TokenPath, "where the bearer token is kept (env TXGATE_TOKEN_FILE)")
	root.PersistentFlags().StringVar(&api.Output, "out", "text", "output format: text|json")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newRolesCommand(),
		newPermissionsCommand(),
		newPruneIdempotencyCommand(),
		newLoginCommand(api),
		newRegisterCommand(api),
		newLogoutCommand(api),
		newMeCommand(api),
		newTxCommand(api),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
