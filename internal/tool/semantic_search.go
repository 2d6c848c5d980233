// Package tool exposes the semantic index as a single MCP tool, the
// boundary an MCP host (an editor, an agent) talks to.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/llamaha/codesem/internal/retrieval"
	"github.com/llamaha/codesem/pkg/version"
)

// SemanticSearchInput is the tool's input schema.
type SemanticSearchInput struct {
	Query     string   `json:"query" jsonschema:"the natural-language or code search query"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Threshold *float32 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity score in [0,1], no filtering if omitted"`
}

const defaultLimit = 10

// Server wraps a Retriever as an MCP server exposing one tool.
type Server struct {
	mcp       *mcp.Server
	retriever *retrieval.Retriever
}

// NewServer constructs the MCP server and registers the semantic_search
// tool against retriever.
func NewServer(retriever *retrieval.Retriever) *Server {
	s := &Server{
		retriever: retriever,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "codesem",
				Version: version.Version,
			},
			nil,
		),
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Searches the indexed codebase by meaning using vector similarity over chunked source. Returns matching excerpts with file path and line range.",
	}, s.handle)

	return s
}

// MCPServer returns the underlying SDK server, e.g. for Run/Serve.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) handle(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (
	*mcp.CallToolResult,
	struct{},
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "query must not be empty"}},
			IsError: true,
		}, struct{}{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	results, err := s.retriever.Search(ctx, input.Query, limit, input.Threshold)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("search failed: %v", err)}},
			IsError: true,
		}, struct{}{}, nil
	}

	text := FormatResults(results)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, struct{}{}, nil
}

// FormatResults renders results in the exact literal format the tool-use
// contract specifies: one "**path:start:end**" header per hit followed by
// a fenced content block, blank-line separated, or a fixed no-results
// sentence when there are none.
func FormatResults(results []retrieval.Result) string {
	if len(results) == 0 {
		return "No results found for the query."
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "**%s:%d:%d**\n```\n%s\n```\n\n", r.FilePath, r.StartLine, r.EndLine, r.Content)
	}
	return sb.String()
}
