package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/butlerbot/relay/internal/data"
	"github.com/butlerbot/relay/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the relay tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if apiURL == "" {
				apiURL = os.Getenv("RELAY_API_URL")
			}
			var client *mcp.Client
			if apiURL != "" {
				client = mcp.NewClient(apiURL)
			}
			return mcp.NewServer(data.NewToolRepo(), client, version).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Relay API base URL, enables the chat tools (default RELAY_API_URL)")
	return cmd
}
