package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

// Server exposes the lobby facade as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	svc       lobby.Service
	lobbyName string
}

// NewServer creates a new MCP server for svc. lobbyName is reported by
// get_join_info.
func NewServer(svc lobby.Service, lobbyName string) *Server {
	s := &Server{
		svc:       svc,
		lobbyName: lobbyName,
	}

	s.mcpServer = server.NewMCPServer(
		"peerlobby",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
