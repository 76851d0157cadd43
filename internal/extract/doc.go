package extract

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// minRunLength is the shortest byte run kept when scraping binary Word files.
const minRunLength = 4

// DocRunsTier scrapes UTF-16LE text runs from a legacy binary .doc file,
// where Word stores most body text.
type DocRunsTier struct{}

func (t *DocRunsTier) Method() domain.ExtractionMethod { return domain.MethodPrimary }

func (t *DocRunsTier) Attempt(_ context.Context, src Source, _ ProgressFunc) (string, error) {
	data := src.Data
	var out strings.Builder
	var run []rune

	flush := func() {
		if len(run) >= minRunLength {
			out.WriteString(string(run))
			out.WriteByte('\n')
		}
		run = run[:0]
	}

	for i := 0; i+1 < len(data); i += 2 {
		r := rune(data[i]) | rune(data[i+1])<<8
		if isDocTextRune(r) {
			if r == '\r' || r == '\v' {
				r = '\n'
			}
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return out.String(), nil
}

// DocBytesTier scrapes printable single-byte runs, decoded as Windows-1252.
type DocBytesTier struct{}

func (t *DocBytesTier) Method() domain.ExtractionMethod { return domain.MethodLayoutFallback }

func (t *DocBytesTier) Attempt(_ context.Context, src Source, _ ProgressFunc) (string, error) {
	decoder := charmap.Windows1252.NewDecoder()
	var out strings.Builder
	start := -1

	flush := func(end int) {
		if start >= 0 && end-start >= minRunLength {
			if decoded, err := decoder.Bytes(src.Data[start:end]); err == nil {
				out.Write(decoded)
				out.WriteByte('\n')
			}
		}
		start = -1
	}

	for i, b := range src.Data {
		if b == '\t' || b == '\r' || b == '\n' || (b >= 0x20 && b != 0x7F) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(src.Data))
	return out.String(), nil
}

func isDocTextRune(r rune) bool {
	switch r {
	case '\t', '\r', '\n', '\v':
		return true
	}
	if r < 0x20 {
		return false
	}
	// Latin, Greek and Cyrillic blocks, general punctuation and the euro sign.
	// Wider ranges turn pairs of ASCII bytes into spurious CJK runs.
	if r < 0x0530 || (r >= 0x2000 && r <= 0x206F) || r == 0x20AC {
		return unicode.IsPrint(r)
	}
	return false
}
