// Package mcptools exposes the document QA service as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/docqa/pipeline"
	"docqa/internal/docqa/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server backed by the document QA service.
type Server struct {
	svc *service.Service
	mcp *server.MCPServer
}

// NewServer creates a new MCP server and registers the document tools.
func NewServer(svc *service.Service) *Server {
	s := &Server{svc: svc}
	s.mcp = server.NewMCPServer(
		"docqa",
		Version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(askDocumentsTool, s.handleAsk)
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
	s.mcp.AddTool(listQuestionsTool, s.handleListQuestions)
	s.mcp.AddTool(deleteDocumentsTool, s.handleDeleteDocuments)
	return s
}

// Serve starts the MCP server on the chosen transport: "stdio", "sse" or "httpstream".
// addr is only used by the HTTP-based transports. On stdio, stdout carries protocol
// messages, so all logging must go to stderr.
func (s *Server) Serve(transport, addr string) error {
	switch transport {
	case "", "stdio":
		return server.ServeStdio(s.mcp)
	case "sse":
		return server.NewSSEServer(s.mcp).Start(addr)
	case "httpstream":
		return server.NewStreamableHTTPServer(s.mcp).Start(addr)
	default:
		return fmt.Errorf("unknown transport %q, use stdio, sse or httpstream", transport)
	}
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	topK := request.GetInt("top_k", 0)

	ans, err := s.svc.Ask(ctx, question, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnswer(ans)), nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.svc.ListDocuments(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("No documents have been ingested yet."), nil
	}

	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "- %s (%s): %d chunks, ingested %s\n", r.ID, r.FileName, len(r.ChunkIDs), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleListQuestions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questions, err := s.svc.ListQuestions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list questions failed: %v", err)), nil
	}
	if len(questions) == 0 {
		return mcp.NewToolResultText("No questions have been stored yet."), nil
	}
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode questions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleDeleteDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := request.GetStringSlice("ids", nil)
	if len(ids) == 0 {
		return mcp.NewToolResultError("missing required parameter: ids"), nil
	}

	res, err := s.svc.DeleteDocuments(ctx, ids)
	var partial *pipeline.PartialDeletionError
	if errors.As(err, &partial) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}

	msg := fmt.Sprintf("Deleted %d document(s), %d chunk(s).", len(res.Deleted), len(res.ChunkIDs))
	if len(res.NotFound) > 0 {
		msg += fmt.Sprintf(" Not found: %s.", strings.Join(res.NotFound, ", "))
	}
	return mcp.NewToolResultText(msg), nil
}

func formatAnswer(ans *service.AnswerView) string {
	var b strings.Builder
	b.WriteString(ans.Answer)
	if len(ans.Sources) == 0 {
		return b.String()
	}
	b.WriteString("\n\nSources:\n")
	for _, src := range ans.Sources {
		fmt.Fprintf(&b, "- %s (score %.3f)\n", sourceLabel(src), src.Score)
	}
	return b.String()
}

func sourceLabel(src service.Source) string {
	switch {
	case src.FileName != "":
		return fmt.Sprintf("%s / %s", src.FileName, src.ChunkID)
	case src.FileID != "":
		return fmt.Sprintf("%s / %s", src.FileID, src.ChunkID)
	default:
		return src.ChunkID
	}
}
