package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query   string `json:"query" jsonschema:"Free-text query matched against document chunks"`
	Project string `json:"project,omitempty" jsonschema:"Project scope; global documents are included unless shadowed. Defaults to global"`
	K       int    `json:"k,omitempty" jsonschema:"Maximum number of chunks to return"`
}

// SearchHandler handles the search_documents tool.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Handle runs the search and formats the ranked chunks as markdown.
func (h *SearchHandler) Handle(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}
	if args.K < 0 {
		return errorResult("k must not be negative"), nil, nil
	}

	project := scopeOrGlobal(args.Project)
	results, err := h.searcher.Search(ctx, project, args.Query, args.K)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	if len(results) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", args.Query)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s' in %s:\n\n", len(results), args.Query, project)
	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s/%s (chunk %d)\n", i+1, r.Project, r.Filename, r.Chunk.Index)
		fmt.Fprintf(&sb, "**Score**: %d\n\n", r.Score)
		sb.WriteString("```\n")
		sb.WriteString(r.Chunk.Content)
		sb.WriteString("\n```\n\n")
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_documents",
		Description: "Search uploaded documents and return the most relevant text chunks",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, searcher Searcher) {
	handler := NewSearchHandler(searcher)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
