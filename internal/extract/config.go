package extract

import (
	"log/slog"
	"time"
)

// Config configures the extraction chain.
type Config struct {
	// MinChars is the minimal-viable-content threshold, in non-space characters.
	MinChars int

	// Per-tier output caps, in characters.
	PrimaryCap int
	LayoutCap  int
	OCRCap     int

	OCR OCRConfig

	// TempDir holds scratch files for external tools. Empty means os.TempDir().
	TempDir string

	Logger *slog.Logger
}

// OCRConfig configures the OCR tier.
type OCRConfig struct {
	Enabled     bool
	DPI         int
	Languages   string
	Timeout     time.Duration
	PageTimeout time.Duration

	// MaxPages caps the pages recognised; LargeFilePages applies instead
	// when the source exceeds LargeFileThreshold bytes.
	MaxPages           int
	LargeFilePages     int
	LargeFileThreshold int64

	ParallelPages int
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	c := Config{OCR: OCRConfig{Enabled: true}}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.MinChars <= 0 {
		c.MinChars = 50
	}
	if c.PrimaryCap <= 0 {
		c.PrimaryCap = 500_000
	}
	if c.LayoutCap <= 0 {
		c.LayoutCap = 400_000
	}
	if c.OCRCap <= 0 {
		c.OCRCap = 300_000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.OCR.defaults()
}

func (o *OCRConfig) defaults() {
	if o.DPI <= 0 {
		o.DPI = 150
	}
	if o.Languages == "" {
		o.Languages = "ita+eng"
	}
	if o.Timeout <= 0 {
		o.Timeout = 300 * time.Second
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = 60 * time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 50
	}
	if o.LargeFilePages <= 0 {
		o.LargeFilePages = 20
	}
	if o.LargeFileThreshold <= 0 {
		o.LargeFileThreshold = 10 * 1024 * 1024
	}
	if o.ParallelPages <= 0 {
		o.ParallelPages = 2
	}
}

// pageLimit returns how many leading pages to recognise for a source of the given size.
func (o OCRConfig) pageLimit(size int64) int {
	if size > o.LargeFileThreshold {
		return o.LargeFilePages
	}
	return o.MaxPages
}
