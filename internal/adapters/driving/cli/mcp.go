package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/adapters/driving/mcp"
)

var (
	mcpHTTPAddr string
	mcpWatch    bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose indexes to MCP clients",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run a Model Context Protocol server offering the search and
index_status tools plus index and field resources.

Without --http the server talks JSON-RPC over stdin and stdout, which is
what most assistants expect when they launch searchapi themselves.

Examples:
  searchapi mcp serve
  searchapi mcp serve --http 127.0.0.1:8080 --watch`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	f := mcpServeCmd.Flags()
	f.StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	f.BoolVar(&mcpWatch, "watch", false, "track datasource changes while serving")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{Search: searchService, Index: indexService}, version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mcpWatch && watcher != nil {
		if err := watcher.WatchDatasources(ctx); err != nil {
			return fmt.Errorf("watching datasources: %w", err)
		}
	}

	if mcpHTTPAddr == "" {
		return server.Run(ctx)
	}
	// stdout is free in HTTP mode.
	cmd.Printf("MCP server listening on http://%s\n", mcpHTTPAddr)
	return server.RunHTTP(ctx, mcpHTTPAddr)
}
