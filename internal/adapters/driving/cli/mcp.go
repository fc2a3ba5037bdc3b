package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tankfinder/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so assistants can search the
job catalog with the search_jobs and get_job tools.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  tankfinder mcp serve

  # HTTP mode
  tankfinder mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "tankfinder": {
        "command": "/path/to/tankfinder",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Search:  searchService,
		Catalog: catalogService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.ListenAndServe(cmd.Context(), addr)
	}

	return server.ServeStdio(cmd.Context())
}
