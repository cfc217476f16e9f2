// Package mcp exposes the assistant as Model Context Protocol tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/reiness/edos-jls-chatbot/internal/assistant"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes SOP question-answering tools.
type Server struct {
	assistant *assistant.Assistant
	mcp       *server.MCPServer
}

// NewServer creates a new MCP server backed by a.
func NewServer(a *assistant.Assistant) *Server {
	s := &Server{assistant: a}

	s.mcp = server.NewMCPServer(
		"sopbot",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(answerQuestionTool, s.handleAnswerQuestion)
	s.mcp.AddTool(searchPassagesTool, s.handleSearchPassages)
	s.mcp.AddTool(indexStatusTool, s.handleIndexStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
