package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/retriever"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

const defaultSearchLimit = 5

// handleAnswerQuestion retrieves passages and composes a grounded answer.
func (s *Server) handleAnswerQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	var topK *int
	var threshold *float64
	args := request.GetArguments()
	if _, ok := args["top_k"]; ok {
		k := request.GetInt("top_k", 0)
		topK = &k
	}
	if _, ok := args["threshold"]; ok {
		th := request.GetFloat("threshold", 0)
		threshold = &th
	}
	policy, err := retriever.Resolve(topK, threshold, s.assistant.DefaultPolicy())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	turn, err := s.assistant.AnswerQuery(ctx, question, policy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(turn)), nil
}

// handleSearchPassages returns the top passages for a query.
func (s *Server) handleSearchPassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := s.assistant.Search(ctx, query, retriever.TopK{K: limit})
	if err != nil {
		if domain.IsNotFound(err) {
			return mcp.NewToolResultError("The SOP index has not been built yet. Run `sopbot ingest --build` first."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(hits)), nil
}

// handleIndexStatus describes the live index without loading one.
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.assistant.Indexes()
	ix := m.Current()
	if ix == nil {
		return mcp.NewToolResultText(fmt.Sprintf("State: %s\nNo index is loaded. It is loaded on the first question, or built with `sopbot build`.", m.State())), nil
	}

	info := ix.Info()
	var sb strings.Builder
	fmt.Fprintf(&sb, "State: %s\n", m.State())
	fmt.Fprintf(&sb, "Passages: %d\n", info.Count)
	fmt.Fprintf(&sb, "Dimension: %d\n", info.Dimension)
	if info.Embedder != "" {
		fmt.Fprintf(&sb, "Embedder: %s\n", info.Embedder)
	}
	if !info.BuiltAt.IsZero() {
		fmt.Fprintf(&sb, "Built at: %s\n", info.BuiltAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatAnswer renders an answer with a numbered source list.
func formatAnswer(turn domain.ConversationTurn) string {
	var sb strings.Builder
	sb.WriteString(turn.Answer)

	if len(turn.Sources) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\nSources:\n")
	for i, c := range turn.Sources {
		fmt.Fprintf(&sb, "%d. %s", i+1, c.Title)
		if c.Section != "" {
			fmt.Fprintf(&sb, " (%s)", c.Section)
		}
		fmt.Fprintf(&sb, " [score %.2f]\n", c.Score)
		if c.Link != "" {
			fmt.Fprintf(&sb, "   %s\n", c.Link)
		}
		fmt.Fprintf(&sb, "   %q\n", c.Snippet)
	}
	return sb.String()
}
