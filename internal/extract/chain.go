// Package extract turns raw document bytes into plain text through an ordered
// chain of extraction tiers, escalating from cheap to expensive methods.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// ProgressFunc receives progress in percent (0-100) within the current unit of work.
type ProgressFunc func(percent int)

// Source is a raw document handed to the tiers. Data is never modified.
type Source struct {
	Filename string
	Data     []byte

	// Path is an on-disk copy of Data, if one exists.
	Path string
}

// Size returns the source size in bytes.
func (s Source) Size() int64 {
	return int64(len(s.Data))
}

// materialize returns a file path holding the source bytes, writing a scratch
// copy when the source has no path. The cleanup func is always non-nil.
func (s Source) materialize(tempDir string) (string, func(), error) {
	if s.Path != "" {
		return s.Path, func() {}, nil
	}
	f, err := os.CreateTemp(tempDir, "docchat-src-*"+filepath.Ext(s.Filename))
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create scratch file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(s.Data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to close scratch file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// Tier is one extraction strategy.
type Tier interface {
	Method() domain.ExtractionMethod
	Attempt(ctx context.Context, src Source, progress ProgressFunc) (string, error)
}

// Result is the outcome of a successful extraction.
type Result struct {
	Text   string
	Method domain.ExtractionMethod
	Tried  []TierOutcome
}

// TierOutcome records one tier attempt.
type TierOutcome struct {
	Method domain.ExtractionMethod
	Chars  int
	Err    error
}

// Chain runs the tiers registered for a file format in order.
type Chain struct {
	cfg     Config
	formats map[string][]Tier
	logger  *slog.Logger
}

// NewChain creates the default chain: pdfcpu, pdftotext and OCR for PDF,
// XML walks for DOCX, byte-run scraping for DOC, and UTF-8 / Windows-1252 for text.
func NewChain(cfg Config, executor CommandExecutor) *Chain {
	cfg.defaults()
	if executor == nil {
		executor = &DefaultExecutor{}
	}

	pdfTiers := []Tier{
		&PDFTextTier{Cap: cfg.PrimaryCap},
		&PDFLayoutTier{executor: executor, tempDir: cfg.TempDir},
	}
	if cfg.OCR.Enabled {
		pdfTiers = append(pdfTiers, NewOCRTier(cfg.OCR, executor, cfg.TempDir, cfg.Logger))
	}

	textTiers := []Tier{&UTF8TextTier{}, &LegacyTextTier{}}

	return NewChainWithTiers(cfg, map[string][]Tier{
		".pdf":  pdfTiers,
		".docx": {&DocxTier{}, &DocxScrapeTier{}},
		".doc":  {&DocRunsTier{}, &DocBytesTier{}},
		".txt":  textTiers,
		".md":   textTiers,
	})
}

// NewChainWithTiers creates a chain with explicit per-extension tiers.
func NewChainWithTiers(cfg Config, formats map[string][]Tier) *Chain {
	cfg.defaults()
	return &Chain{
		cfg:     cfg,
		formats: formats,
		logger:  cfg.Logger,
	}
}

// Supports reports whether the chain has tiers for the file's extension.
func (c *Chain) Supports(filename string) bool {
	_, ok := c.formats[domain.FileExtension(filename)]
	return ok
}

// Extract runs each applicable tier once, in order, and returns the first
// result that reaches the minimal-viable threshold. Tier failures only advance
// the chain; exhaustion is reported as domain.ErrExtractionExhausted.
func (c *Chain) Extract(ctx context.Context, src Source, progress ProgressFunc) (Result, error) {
	tiers, ok := c.formats[domain.FileExtension(src.Filename)]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, src.Filename)
	}
	if progress == nil {
		progress = func(int) {}
	}

	var result Result
	var causes []string
	for i, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		base := i * 100 / len(tiers)
		width := 100 / len(tiers)
		progress(base)
		tierProgress := func(p int) {
			progress(base + min(max(p, 0), 100)*width/100)
		}

		text, err := attempt(ctx, tier, src, tierProgress)
		text = truncateChars(cleanText(text), c.capFor(tier.Method()))
		chars := countContentChars(text)
		outcome := TierOutcome{Method: tier.Method(), Chars: chars, Err: err}
		result.Tried = append(result.Tried, outcome)

		// Text recognised before a timeout is kept even below the threshold.
		partial := chars > 0 && errors.Is(err, domain.ErrTimeoutExceeded)
		if chars >= c.cfg.MinChars || partial {
			if err != nil {
				c.logger.Warn("Extraction tier returned partial text", "file", src.Filename, "tier", tier.Method(), "error", err)
			}
			progress(100)
			result.Text = text
			result.Method = tier.Method()
			return result, nil
		}

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err != nil {
			causes = append(causes, fmt.Sprintf("%s: %v", tier.Method(), err))
		} else {
			causes = append(causes, fmt.Sprintf("%s: %d characters", tier.Method(), chars))
		}
		c.logger.Info("Extraction tier under-produced, escalating",
			"file", src.Filename, "tier", tier.Method(), "chars", chars, "error", err)
	}

	return result, fmt.Errorf("%w: %s (%s)", domain.ErrExtractionExhausted, src.Filename, strings.Join(causes, "; "))
}

// attempt runs one tier, turning a panic into a tier error.
func attempt(ctx context.Context, tier Tier, src Source, progress ProgressFunc) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%s tier panicked: %v", tier.Method(), r)
		}
	}()
	return tier.Attempt(ctx, src, progress)
}

func (c *Chain) capFor(method domain.ExtractionMethod) int {
	switch method {
	case domain.MethodLayoutFallback:
		return c.cfg.LayoutCap
	case domain.MethodOCR:
		return c.cfg.OCRCap
	default:
		return c.cfg.PrimaryCap
	}
}

// countContentChars counts non-space characters.
func countContentChars(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// truncateChars cuts text to at most limit characters on a rune boundary.
func truncateChars(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// runeLen is a small helper used by tiers that stop early at their cap.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
