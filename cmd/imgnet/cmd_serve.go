package main

import (
	"context"

	"github.com/spf13/cobra"

	"imgnet/internal/logging"
	mcpserver "imgnet/internal/mcp"
	"imgnet/internal/workspace"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing load, batch, stats,
events and export tools on one workspace.

The server monitors for parent process death and exits when the client
that spawned it goes away.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ws := workspace.New(workspace.Options{Config: currentConfig()})
	srv := mcpserver.NewServer(ws, version)
	defer srv.Shutdown()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting imgnet MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
