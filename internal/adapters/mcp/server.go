package mcpadapter

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/avoronov/compliance-kb/internal/core/ports"
)

const (
	serverName    = "compliance-kb"
	serverVersion = "1.0.0"

	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Server exposes the knowledge base to MCP clients over stdio, so an
// assistant can ask questions, inspect raw retrieval and read cache
// counters through the same usecases the HTTP API serves.
type Server struct {
	mcp       *server.MCPServer
	questions ports.QuestionService
	retriever ports.Retriever
}

func NewServer(questions ports.QuestionService, retriever ports.Retriever) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(serverName, serverVersion),
		questions: questions,
		retriever: retriever,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio and blocks until the client disconnects
// or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(askKnowledgeBaseTool(), s.handleAsk)
	s.mcp.AddTool(searchKnowledgeBaseTool(), s.handleSearch)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
}
