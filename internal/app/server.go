package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/api"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/auth"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/config"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// NewHTTPServer creates the HTTP server: REST routes plus the MCP SSE endpoint,
// behind the configured authentication.
func NewHTTPServer(svc *Services, settings *config.Settings) (*http.Server, error) {
	r := api.NewRouter(svc.API)

	if svc.MCP != nil {
		// Factory function returns the server instance for each request
		sseHandler := mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
			return svc.MCP
		}, nil)
		r.Handle("/sse", sseHandler)
	}

	authMiddleware, err := auth.NewMiddleware(settings.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", settings.Host, settings.Port),
		Handler:           authMiddleware(r),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// StartHTTPServer serves until ctx is canceled, then shuts down gracefully.
func StartHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening (HTTP)", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
