package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

type fakeCatalog struct {
	docs     map[string][]domain.Document
	projects []domain.ProjectOverview
}

func (f *fakeCatalog) Get(key domain.DocumentKey) (domain.Document, error) {
	for _, d := range f.docs[key.Project] {
		if d.Filename == key.Filename {
			return d, nil
		}
	}
	return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
}

func (f *fakeCatalog) List(project string) ([]domain.Document, error) {
	docs, ok := f.docs[project]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, project)
	}
	return docs, nil
}

func (f *fakeCatalog) ListProjects() []domain.ProjectOverview {
	return f.projects
}

type fakeSearcher struct {
	results []domain.ScoredChunk
	err     error
	project string
	k       int
}

func (f *fakeSearcher) Search(_ context.Context, project, _ string, k int) ([]domain.ScoredChunk, error) {
	f.project, f.k = project, k
	return f.results, f.err
}

func newFakes() (*fakeCatalog, *fakeSearcher) {
	catalog := &fakeCatalog{
		docs: map[string][]domain.Document{
			domain.GlobalProject: {
				{Project: domain.GlobalProject, Filename: "policy.pdf", Status: domain.StatusCompleted, Progress: 100, TotalChunks: 3, Method: domain.MethodPrimary},
			},
			"acme": {
				{Project: "acme", Filename: "scan.pdf", Status: domain.StatusError, ErrorDetail: "extraction exhausted"},
			},
		},
		projects: []domain.ProjectOverview{
			{Project: domain.Project{Name: domain.GlobalProject, IsGlobal: true}, Documents: 1, Completed: 1},
			{Project: domain.Project{Name: "acme"}, Documents: 1, Errors: 1},
		},
	}
	searcher := &fakeSearcher{results: []domain.ScoredChunk{
		{Project: domain.GlobalProject, Filename: "policy.pdf", Score: 25, Chunk: domain.Chunk{Index: 1, Content: "the annual report policy"}},
	}}
	return catalog, searcher
}

func mcpSession(t *testing.T, cfg ServerConfig) *mcp.ClientSession {
	t.Helper()
	srv := CreateServer(cfg)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) failed: %v", name, err)
	}
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String(), result.IsError
}

func TestCreateServer(t *testing.T) {
	server := CreateServer(ServerConfig{Name: "docchat", Version: "1.0.0"})
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_ToolsRegistered(t *testing.T) {
	catalog, searcher := newFakes()
	session := mcpSession(t, ServerConfig{Name: "docchat", Version: "1.0.0", Catalog: catalog, Searcher: searcher})

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"search_documents", "document_status", "list_projects"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestSearchTool(t *testing.T) {
	catalog, searcher := newFakes()
	session := mcpSession(t, ServerConfig{Catalog: catalog, Searcher: searcher})

	text, isErr := callTool(t, session, "search_documents", map[string]any{"query": "annual report", "k": 3})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "global/policy.pdf (chunk 1)") || !strings.Contains(text, "**Score**: 25") {
		t.Errorf("unexpected output:\n%s", text)
	}
	if searcher.project != domain.GlobalProject || searcher.k != 3 {
		t.Errorf("expected global scope and k=3, got %q k=%d", searcher.project, searcher.k)
	}

	callTool(t, session, "search_documents", map[string]any{"query": "x", "project": "acme"})
	if searcher.project != "acme" {
		t.Errorf("expected acme scope, got %q", searcher.project)
	}
}

func TestSearchTool_Errors(t *testing.T) {
	catalog, searcher := newFakes()
	session := mcpSession(t, ServerConfig{Catalog: catalog, Searcher: searcher})

	if text, isErr := callTool(t, session, "search_documents", map[string]any{"query": "  "}); !isErr {
		t.Errorf("expected error for empty query, got %s", text)
	}

	searcher.err = domain.ErrInvalidProject
	if text, isErr := callTool(t, session, "search_documents", map[string]any{"query": "x", "project": "bad"}); !isErr || !strings.Contains(text, "invalid project") {
		t.Errorf("expected invalid project error, got %q", text)
	}

	searcher.err = nil
	searcher.results = nil
	if text, isErr := callTool(t, session, "search_documents", map[string]any{"query": "nothing"}); isErr || !strings.Contains(text, "No results") {
		t.Errorf("expected empty result message, got %q", text)
	}
}

func TestStatusTool(t *testing.T) {
	catalog, searcher := newFakes()
	session := mcpSession(t, ServerConfig{Catalog: catalog, Searcher: searcher})

	tests := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr bool
	}{
		{"project listing", map[string]any{"project": "acme"}, "| acme/scan.pdf | error | 0% | 0 |  | extraction exhausted |", false},
		{"default global", map[string]any{}, "| global/policy.pdf | completed | 100% | 3 | primary |", false},
		{"single document", map[string]any{"filename": "policy.pdf"}, "global/policy.pdf", false},
		{"missing document", map[string]any{"filename": "nope.pdf"}, "not found", true},
		{"missing project", map[string]any{"project": "other"}, "not found", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, session, "document_status", tt.args)
			if isErr != tt.wantErr {
				t.Fatalf("expected isError=%v, got %v: %s", tt.wantErr, isErr, text)
			}
			if !strings.Contains(text, tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, text)
			}
		})
	}
}

func TestProjectsTool(t *testing.T) {
	catalog, searcher := newFakes()
	session := mcpSession(t, ServerConfig{Catalog: catalog, Searcher: searcher})

	text, isErr := callTool(t, session, "list_projects", map[string]any{})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	global := strings.Index(text, "| global |")
	acme := strings.Index(text, "| acme |")
	if global < 0 || acme < 0 || global > acme {
		t.Errorf("expected global before acme:\n%s", text)
	}
}

func TestSearchHandler_DirectError(t *testing.T) {
	h := NewSearchHandler(&fakeSearcher{err: errors.New("boom")})
	result, _, err := h.Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "x"})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result")
	}
}
