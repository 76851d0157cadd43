package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// UTF8TextTier decodes plain text and Markdown as UTF-8, or as UTF-16 when a
// byte order mark says so. Invalid UTF-8 fails the tier.
type UTF8TextTier struct{}

func (t *UTF8TextTier) Method() domain.ExtractionMethod { return domain.MethodPrimary }

func (t *UTF8TextTier) Attempt(_ context.Context, src Source, _ ProgressFunc) (string, error) {
	data := src.Data
	if hasUTF16BOM(data) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("utf-16 decode: %w", err)
		}
		return string(decoded), nil
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}

// LegacyTextTier decodes text as Windows-1252, which accepts every byte.
type LegacyTextTier struct{}

func (t *LegacyTextTier) Method() domain.ExtractionMethod { return domain.MethodLayoutFallback }

func (t *LegacyTextTier) Attempt(_ context.Context, src Source, _ ProgressFunc) (string, error) {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(bytes.TrimPrefix(src.Data, utf8BOM))
	if err != nil {
		return "", fmt.Errorf("windows-1252 decode: %w", err)
	}
	return string(decoded), nil
}

func hasUTF16BOM(data []byte) bool {
	return len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF))
}
