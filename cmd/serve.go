package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/assistant"
	mcpserver "github.com/reiness/edos-jls-chatbot/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing SOP question answering and passage search tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := assistant.FromConfig(cfg)
		if err != nil {
			return err
		}

		// Stdout carries the protocol; everything else goes to stderr.
		if ix, err := a.BuildOrLoadIndex(cmd.Context(), false); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: index unavailable: %v\n", err)
			fmt.Fprintf(os.Stderr, "Tools will report errors until `sopbot ingest --build` runs.\n")
		} else {
			fmt.Fprintf(os.Stderr, "sopbot MCP server started on stdio (passages=%d)\n", ix.Len())
		}

		mcpserver.Version = Version
		return mcpserver.NewServer(a).Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
