package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/api"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/chunker"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/config"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/extract"
	mcputil "github.com/palumbou/another-documents-chat-ai-sub000/internal/mcp"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/processing"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/retrieval"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/store"
)

// ServerName is reported to MCP clients.
const ServerName = "docchat"

// Services holds the wired application components.
type Services struct {
	Store       *store.Store
	Coordinator *processing.Coordinator
	Searcher    *retrieval.Searcher
	MCP         *mcp.Server
	API         *api.Handler
}

// ExtractConfig maps settings onto the extraction chain configuration.
func ExtractConfig(s *config.Settings, logger *slog.Logger) extract.Config {
	return extract.Config{
		MinChars:   s.Extraction.MinChars,
		PrimaryCap: s.Extraction.PrimaryCap,
		LayoutCap:  s.Extraction.LayoutCap,
		OCRCap:     s.Extraction.OCRCap,
		OCR: extract.OCRConfig{
			Enabled:            s.OCR.Enabled,
			DPI:                s.OCR.DPI,
			Languages:          s.OCR.Languages,
			Timeout:            s.OCR.Timeout,
			PageTimeout:        s.OCR.PageTimeout,
			MaxPages:           s.OCR.MaxPages,
			LargeFilePages:     s.OCR.LargeFilePages,
			LargeFileThreshold: s.OCR.LargeFileThreshold,
			ParallelPages:      s.OCR.ParallelPages,
		},
		Logger: logger,
	}
}

// NewServices opens the store and wires the pipeline around it.
// The coordinator is not started; call Start.
func NewServices(s *config.Settings, executor extract.CommandExecutor, version string) (*Services, error) {
	logger := slog.Default()

	st, err := store.Open(store.Options{
		DataDir:     s.DataDir,
		MaxFileSize: s.Extraction.MaxFileSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	chain := extract.NewChain(ExtractConfig(s, logger), executor)
	coord := processing.NewCoordinator(st, chain, processing.Options{
		Workers:   s.Processing.Workers,
		QueueSize: s.Processing.QueueSize,
		Chunking:  chunker.Options{MaxSize: s.Chunking.MaxSize, Overlap: s.Chunking.Overlap},
		Logger:    logger,
	})
	searcher := retrieval.NewSearcher(st, retrieval.NewScorer(s.Retrieval.ProximityWindow, s.Retrieval.MaxResults), logger)

	return &Services{
		Store:       st,
		Coordinator: coord,
		Searcher:    searcher,
		MCP: mcputil.CreateServer(mcputil.ServerConfig{
			Name:     ServerName,
			Version:  version,
			Catalog:  st,
			Searcher: searcher,
		}),
		API: api.NewHandler(coord, st, searcher, logger),
	}, nil
}

// Start launches the processing workers.
func (s *Services) Start() {
	if s.Coordinator != nil {
		s.Coordinator.Start()
	}
}

// Close stops the workers, then releases the store.
// Documents still processing when ctx expires are recorded as interrupted.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.Coordinator != nil {
		if err := s.Coordinator.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("coordinator shutdown: %w", err))
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	return errors.Join(errs...)
}
