package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// StatusArgument selects one document or a whole project.
type StatusArgument struct {
	Project  string `json:"project,omitempty" jsonschema:"Project name. Defaults to global"`
	Filename string `json:"filename,omitempty" jsonschema:"Document filename; omit to list every document of the project"`
}

// StatusHandler handles the document_status tool.
type StatusHandler struct {
	catalog Catalog
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(catalog Catalog) *StatusHandler {
	return &StatusHandler{catalog: catalog}
}

// Handle reports processing state as a markdown table.
func (h *StatusHandler) Handle(_ context.Context, _ *mcp.CallToolRequest, args StatusArgument) (*mcp.CallToolResult, any, error) {
	project := scopeOrGlobal(args.Project)

	var docs []domain.Document
	if args.Filename != "" {
		doc, err := h.catalog.Get(domain.DocumentKey{Project: project, Filename: args.Filename})
		if err != nil {
			return errorResult(fmt.Sprintf("Status lookup failed: %s", err)), nil, nil
		}
		docs = []domain.Document{doc}
	} else {
		list, err := h.catalog.List(project)
		if err != nil {
			return errorResult(fmt.Sprintf("Status lookup failed: %s", err)), nil, nil
		}
		docs = list
	}

	if len(docs) == 0 {
		return textResult(fmt.Sprintf("No documents in %s", project)), nil, nil
	}

	var sb strings.Builder
	sb.WriteString("| Document | Status | Progress | Chunks | Method | Detail |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "| %s/%s | %s | %d%% | %d | %s | %s |\n",
			d.Project, d.Filename, d.Status, d.Progress, d.TotalChunks, d.Method, d.ErrorDetail)
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *StatusHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "document_status",
		Description: "Report the processing status of a document or of every document in a project",
	}
}

// RegisterStatusTool registers the status tool with an MCP server.
func RegisterStatusTool(server *mcp.Server, catalog Catalog) {
	handler := NewStatusHandler(catalog)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// ProjectsArgument takes no parameters.
type ProjectsArgument struct{}

// ProjectsHandler handles the list_projects tool.
type ProjectsHandler struct {
	catalog Catalog
}

// Handle lists projects with their document counters.
func (h *ProjectsHandler) Handle(_ context.Context, _ *mcp.CallToolRequest, _ ProjectsArgument) (*mcp.CallToolResult, any, error) {
	var sb strings.Builder
	sb.WriteString("| Project | Documents | Completed | Processing | Pending | Errors |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, p := range h.catalog.ListProjects() {
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d | %d |\n",
			p.Name, p.Documents, p.Completed, p.Processing, p.Pending, p.Errors)
	}
	return textResult(sb.String()), nil, nil
}

// RegisterProjectsTool registers the list_projects tool with an MCP server.
func RegisterProjectsTool(server *mcp.Server, catalog Catalog) {
	handler := &ProjectsHandler{catalog: catalog}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List projects with document counters; global is always first",
	}, handler.Handle)
}
