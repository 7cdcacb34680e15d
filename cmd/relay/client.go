package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/butlerbot/relay/internal/conf"
	"github.com/butlerbot/relay/internal/mcp"
)

func defaultAPIURL() string {
	if u := os.Getenv("RELAY_API_URL"); u != "" {
		return u
	}
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = conf.DefaultAPIAddr
	}
	return "http://" + addr
}

func newSendCmd() *cobra.Command {
	var apiURL, username string
	cmd := &cobra.Command{
		Use:   "send <chat_id> <user_id> <message>",
		Short: "Post a message into a chat through a running relay",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = defaultAPIURL()
			}
			client := mcp.NewClient(apiURL)
			seq, err := client.PostMessage(cmd.Context(), args[0], args[1], username, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted seq=%d\n", seq)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Relay API base URL (default RELAY_API_URL or http://API_ADDR)")
	cmd.Flags().StringVar(&username, "name", "", "Display name of the author")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var apiURL string
	var limit int
	cmd := &cobra.Command{
		Use:   "history <chat_id>",
		Short: "Print the most recent stored messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = defaultAPIURL()
			}
			client := mcp.NewClient(apiURL)
			messages, err := client.GetChatHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(messages)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Relay API base URL (default RELAY_API_URL or http://API_ADDR)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of messages")
	return cmd
}
