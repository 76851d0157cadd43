package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// OCRTier renders PDF pages to images with pdftoppm and recognises them with
// tesseract. Only the first N pages are processed, where N depends on the file
// size. When the overall timeout fires, pages already recognised are kept.
type OCRTier struct {
	cfg       OCRConfig
	executor  CommandExecutor
	tempDir   string
	logger    *slog.Logger
	pageCount func(path string) (int, error)
}

// NewOCRTier creates an OCR tier.
func NewOCRTier(cfg OCRConfig, executor CommandExecutor, tempDir string, logger *slog.Logger) *OCRTier {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRTier{
		cfg:       cfg,
		executor:  executor,
		tempDir:   tempDir,
		logger:    logger,
		pageCount: api.PageCountFile,
	}
}

func (t *OCRTier) Method() domain.ExtractionMethod { return domain.MethodOCR }

func (t *OCRTier) Attempt(ctx context.Context, src Source, progress ProgressFunc) (string, error) {
	path, cleanup, err := src.materialize(t.tempDir)
	if err != nil {
		return "", err
	}
	defer cleanup()

	total, err := t.pageCount(path)
	if err != nil {
		return "", fmt.Errorf("count pages: %w", err)
	}
	limit := min(total, t.cfg.pageLimit(src.Size()))
	if limit <= 0 {
		return "", errors.New("document has no pages")
	}
	if limit < total {
		t.logger.Info("OCR limited to leading pages", "file", src.Filename, "pages", limit, "total_pages", total)
	}

	workDir, err := os.MkdirTemp(t.tempDir, "docchat-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create OCR work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	ocrCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	pages := make([]string, limit)
	var done atomic.Int32
	var g errgroup.Group
	g.SetLimit(t.cfg.ParallelPages)

	for i := range limit {
		if ocrCtx.Err() != nil {
			break
		}
		pageNr := i + 1
		g.Go(func() error {
			text, err := t.recognizePage(ocrCtx, path, workDir, pageNr)
			if err != nil {
				t.logger.Debug("OCR page failed", "file", src.Filename, "page", pageNr, "error", err)
			} else {
				pages[pageNr-1] = text
			}
			if progress != nil {
				progress(int(done.Add(1)) * 100 / limit)
			}
			return nil
		})
	}
	_ = g.Wait()

	var sb strings.Builder
	recognised := 0
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		writePage(&sb, i+1, text)
		recognised++
	}

	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}
	if errors.Is(ocrCtx.Err(), context.DeadlineExceeded) {
		t.logger.Warn("OCR timed out, keeping recognised pages",
			"file", src.Filename, "recognised", recognised, "pages", limit, "timeout", t.cfg.Timeout)
		return sb.String(), fmt.Errorf("%w: OCR stopped after %s with %d of %d pages",
			domain.ErrTimeoutExceeded, t.cfg.Timeout, recognised, limit)
	}
	return sb.String(), nil
}

func (t *OCRTier) recognizePage(ctx context.Context, pdfPath, workDir string, pageNr int) (string, error) {
	pageCtx, cancel := context.WithTimeout(ctx, t.cfg.PageTimeout)
	defer cancel()

	page := strconv.Itoa(pageNr)
	prefix := filepath.Join(workDir, fmt.Sprintf("page-%04d", pageNr))
	if _, err := t.executor.Run(pageCtx, "", ToolPdftoppm,
		"-r", strconv.Itoa(t.cfg.DPI),
		"-png",
		"-f", page,
		"-l", page,
		"-singlefile",
		pdfPath,
		prefix,
	); err != nil {
		return "", fmt.Errorf("render page %d: %w", pageNr, err)
	}

	image := prefix + ".png"
	defer func() { _ = os.Remove(image) }()

	out, err := t.executor.Run(pageCtx, "", ToolTesseract,
		image, "stdout",
		"-l", t.cfg.Languages,
		"--psm", "3",
		"--oem", "3",
	)
	if err != nil {
		return "", fmt.Errorf("recognise page %d: %w", pageNr, err)
	}
	return cleanText(string(out)), nil
}
