// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for Claude integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/lift/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to read your routine and log progress
through a standardized protocol. The server communicates via stdin/stdout.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "lift": {
        "command": "lift",
        "args": ["mcp"]
      }
    }
  }

  On macOS, the config is at:
    ~/Library/Application Support/Claude/claude_desktop_config.json

AVAILABLE TOOLS:

  list_exercises    List exercises, optionally by category
  get_routine       Show a routine's week (default: the active one)
  delete_exercise   Delete an exercise by ID or prefix
  today_log         Show a day's workout log
  complete_sets     Record completed sets in a day's log
  sync_now          Run a sync cycle

AVAILABLE RESOURCES:

  lift://today      Today's workout and progress
  lift://routine    The active routine's week

Writes made through MCP are synced in the background when sync.auto_sync is on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(liftStore, maintainer, syncer)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		serving = true
		defer func() { serving = false }()

		// Background sync for writes made through tools
		done := make(chan struct{})
		go func() {
			defer close(done)
			if syncer != nil {
				_ = syncer.Start(ctx)
			}
		}()

		err = server.Serve(ctx)
		cancel()
		<-done
		return err
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
