package main

import (
	"github.com/spf13/cobra"

	"github.com/lyzr/cookbook/common/clients"
)

func newRootCommand() *cobra.Command {
	defaults := clients.ClientConfigFromEnv()
	ctx := newCommandContext(defaults.ServerURL, defaults.UserID, defaults.Timeout)

	rootCmd := &cobra.Command{
		Use:           "contentctl",
		Short:         "Manage cookbook assets and internal links",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.server, "server", ctx.server, "Content API base URL (env CONTENT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&ctx.user, "user", ctx.user, "User sent as X-User-ID (env CONTENT_API_USER)")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newLinksCommand())
	rootCmd.AddCommand(newSlugCommand())

	return rootCmd
}
