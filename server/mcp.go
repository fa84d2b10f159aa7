package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/quizchain/kit"
)

// NewMCPServer returns an MCP server exposing the quizchain_solve tool.
func (s *Server) NewMCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "quizchain", Version: Version}, nil)
	s.RegisterMCP(srv)
	return srv
}

// RegisterMCP adds the quizchain tools to srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "quizchain_solve",
		Description: "Solve a chain of quiz pages starting at url and return the run report.",
		InputSchema: kit.InputSchema(map[string]any{
			"email":  map[string]any{"type": "string", "description": "Participant email sent with every answer"},
			"secret": map[string]any{"type": "string", "description": "Shared secret"},
			"url":    map[string]any{"type": "string", "description": "URL of the first quiz"},
		}, []string{"email", "secret", "url"}),
	}
	kit.RegisterMCPTool(srv, tool, s.solve, kit.DecodeJSON(func() *SolveRequest { return &SolveRequest{} }))
}
