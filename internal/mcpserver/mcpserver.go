// Package mcpserver hosts the MCP servers behind the --mcp mode of the
// charmci binaries. It narrows the MCP SDK to the two operations the
// tools need: registering typed handlers and serving over stdio.
package mcpserver

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps an MCP server configured for one charmci binary.
type Server struct {
	server *mcp.Server
}

// New creates a server announcing itself with the given name and version.
func New(name, version string) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	return &Server{
		server: server,
	}
}

// RegisterTool adds a tool whose input schema is derived from In.
func RegisterTool[In any](
	s *Server,
	tool *mcp.Tool,
	handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, any, error),
) {
	mcp.AddTool(s.server, tool, handler)
}

// Run serves JSON-RPC over stdio until the context is canceled or the
// client disconnects. stdout belongs to the protocol; anything the
// handlers print must go to stderr.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Printf("MCP server failed: %v", err)

		return err
	}

	return nil
}

// RunDefault runs the server with a background context.
func (s *Server) RunDefault() error {
	return s.Run(context.Background())
}
