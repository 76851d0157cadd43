package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// Catalog is the read side of the document store used by the tools.
type Catalog interface {
	Get(key domain.DocumentKey) (domain.Document, error)
	List(project string) ([]domain.Document, error)
	ListProjects() []domain.ProjectOverview
}

// Searcher ranks chunks for a query.
type Searcher interface {
	Search(ctx context.Context, project, query string, k int) ([]domain.ScoredChunk, error)
}

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Catalog and Searcher are optional; tools are registered only for what is set.
	Catalog  Catalog
	Searcher Searcher
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Searcher != nil {
		RegisterSearchTool(s, cfg.Searcher)
	}
	if cfg.Catalog != nil {
		RegisterStatusTool(s, cfg.Catalog)
		RegisterProjectsTool(s, cfg.Catalog)
	}

	return s
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func scopeOrGlobal(project string) string {
	if project == "" {
		return domain.GlobalProject
	}
	return project
}
