// ABOUTME: MCP server setup for the lift fitness store.
// ABOUTME: Wraps the MCP server with the entity store, log maintainer and syncer.
package mcp

import (
	"context"
	"time"

	"github.com/harperreed/lift/internal/store"
	"github.com/harperreed/lift/internal/sync"
	"github.com/harperreed/lift/internal/workoutlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with lift's data layer.
type Server struct {
	mcpServer *mcp.Server
	store     *store.Store
	logs      *workoutlog.Maintainer
	syncer    *sync.Syncer // nil when no remote is configured
	now       func() time.Time
}

// NewServer creates a new MCP server. syncer may be nil.
func NewServer(s *store.Store, logs *workoutlog.Maintainer, syncer *sync.Syncer) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "lift",
			Version: "1.0.0",
		},
		nil,
	)

	srv := &Server{
		mcpServer: mcpServer,
		store:     s,
		logs:      logs,
		syncer:    syncer,
		now:       time.Now,
	}

	srv.registerTools()
	srv.registerResources()

	return srv, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
