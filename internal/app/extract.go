package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/chunker"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/config"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/extract"
)

// ExtractOptions controls the extract command output.
type ExtractOptions struct {
	ShowChunks bool
}

// RunExtract runs the extraction chain on a local file and writes the result to w.
func RunExtract(ctx context.Context, w io.Writer, settings *config.Settings, path string, opts ExtractOptions, executor extract.CommandExecutor) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	chain := extract.NewChain(ExtractConfig(settings, logger), executor)
	src := extract.Source{Filename: filepath.Base(path), Data: data, Path: path}
	if !chain.Supports(src.Filename) {
		return fmt.Errorf("unsupported file type: %s", src.Filename)
	}

	result, err := chain.Extract(ctx, src, nil)
	for _, tried := range result.Tried {
		status := "ok"
		if tried.Err != nil {
			status = tried.Err.Error()
		}
		fmt.Fprintf(w, "tier %-16s chars=%-8d %s\n", tried.Method, tried.Chars, status)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "method: %s\n", result.Method)
	fmt.Fprintf(w, "characters: %d\n", utf8.RuneCountInString(result.Text))

	if !opts.ShowChunks {
		fmt.Fprintf(w, "\n%s\n", result.Text)
		return nil
	}

	chunks := chunker.Chunk(result.Text, chunker.Options{MaxSize: settings.Chunking.MaxSize, Overlap: settings.Chunking.Overlap})
	fmt.Fprintf(w, "chunks: %d\n", len(chunks))
	for _, c := range chunks {
		fmt.Fprintf(w, "\n--- chunk %d [%d:%d] overlap=%d ---\n%s\n", c.Index, c.StartOffset, c.EndOffset, c.Overlap, c.Content)
	}
	return nil
}

// WriteToolCheck reports the external tools used by the fallback tiers.
// It returns the number of missing tools.
func WriteToolCheck(w io.Writer, statuses []extract.ToolStatus) int {
	missing := 0
	for _, s := range statuses {
		if s.Error != nil {
			missing++
			fmt.Fprintf(w, "%-10s missing\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "%-10s %s\n", s.Name, s.Path)
	}
	return missing
}
