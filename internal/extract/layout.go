package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// PDFLayoutTier runs poppler's pdftotext in layout mode, which copes with
// columns and tables better than the raw text layer.
type PDFLayoutTier struct {
	executor CommandExecutor
	tempDir  string
}

// NewPDFLayoutTier creates a layout tier using the given executor.
func NewPDFLayoutTier(executor CommandExecutor, tempDir string) *PDFLayoutTier {
	return &PDFLayoutTier{executor: executor, tempDir: tempDir}
}

func (t *PDFLayoutTier) Method() domain.ExtractionMethod { return domain.MethodLayoutFallback }

func (t *PDFLayoutTier) Attempt(ctx context.Context, src Source, _ ProgressFunc) (string, error) {
	path, cleanup, err := src.materialize(t.tempDir)
	if err != nil {
		return "", err
	}
	defer cleanup()

	out, err := t.executor.Run(ctx, "", ToolPdftotext, "-layout", "-enc", "UTF-8", "-q", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	pages := strings.Split(string(out), "\f")
	var sb strings.Builder
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		writePage(&sb, i+1, page)
	}
	return sb.String(), nil
}
