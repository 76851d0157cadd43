package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/config"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/extract"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	CreateServices    func(*config.Settings, string) (*Services, error)
	StartHTTPServer   func(context.Context, *http.Server) error
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:    config.LoadSettingsWithFlags,
		ValidSettings:   config.ValidateSettings,
		CreateServices:  CreateServices,
		StartHTTPServer: StartHTTPServer,
	}
}

// CreateServices wires the production services with the os/exec command executor.
func CreateServices(settings *config.Settings, version string) (*Services, error) {
	return NewServices(settings, &extract.DefaultExecutor{}, version)
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting docchat", "version", version)
	config.Log(settings)

	for _, tool := range extract.CheckTools() {
		if tool.Error != nil {
			slog.Warn("External tool not found; the tier using it will fail over", "tool", tool.Name)
		}
	}

	svc, err := params.CreateServices(settings, version)
	if err != nil {
		return err
	}
	svc.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			slog.Error("Shutdown incomplete", "error", err)
		}
	}()

	if settings.Transport == config.TransportStdio {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return svc.MCP.Run(ctx, transport)
	}

	srv, err := NewHTTPServer(svc, settings)
	if err != nil {
		return err
	}
	slog.Info("Starting HTTP server", "host", settings.Host, "port", settings.Port, "auth_type", settings.Auth.Type)
	return params.StartHTTPServer(ctx, srv)
}
