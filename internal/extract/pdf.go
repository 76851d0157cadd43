package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// PDFTextTier reads the embedded text layer with pdfcpu, page by page.
type PDFTextTier struct {
	// Cap stops page iteration once this many characters are gathered. Zero means no limit.
	Cap int
}

func (t *PDFTextTier) Method() domain.ExtractionMethod { return domain.MethodPrimary }

func (t *PDFTextTier) Attempt(ctx context.Context, src Source, progress ProgressFunc) (string, error) {
	pdfCtx, err := readPDF(src.Data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	gathered := 0
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		text := pageText(pdfCtx, pageNr)
		if strings.TrimSpace(text) != "" {
			writePage(&sb, pageNr, text)
			gathered += runeLen(text)
		}
		if progress != nil {
			progress(pageNr * 100 / pdfCtx.PageCount)
		}
		if t.Cap > 0 && gathered >= t.Cap {
			break
		}
	}
	return sb.String(), nil
}

// PDFInfo describes a parsed PDF.
type PDFInfo struct {
	PageCount int
	HasImages bool
}

// InspectPDF returns the page count and whether any page carries image XObjects.
func InspectPDF(data []byte) (PDFInfo, error) {
	pdfCtx, err := readPDF(data)
	if err != nil {
		return PDFInfo{}, err
	}
	info := PDFInfo{PageCount: pdfCtx.PageCount}
	if pdfCtx.Optimize == nil {
		return info, nil
	}
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(pdfCtx, pageNr)) > 0 {
			info.HasImages = true
			break
		}
	}
	return info, nil
}

func readPDF(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return pdfCtx, nil
}

func pageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromContentStream(data)
}

// writePage appends a page block with the "--- Page N ---" header.
func writePage(sb *strings.Builder, pageNr int, text string) {
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString("--- Page ")
	sb.WriteString(strconv.Itoa(pageNr))
	sb.WriteString(" ---\n")
	sb.WriteString(strings.TrimSpace(text))
}

// kerningSpace is the TJ displacement (thousandths of an em) treated as a word gap.
const kerningSpace = -200

// textFromContentStream interprets the text-showing operators of a page
// content stream: Tj, TJ, ' and " show strings; Td, TD, T*, Tm and ET move
// to a new line or insert a gap.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	var operands []string
	var numbers []float64
	inArray := false

	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		s := sb.String()
		if sb.Len() > 0 && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			sb.WriteByte(' ')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			raw, next := readLiteralString(data, i)
			operands = append(operands, decodePDFText(raw))
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			raw, next := readHexString(data, i)
			operands = append(operands, decodePDFText(raw))
			i = next
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			token := string(data[start:i])
			if n, err := strconv.ParseFloat(token, 64); err == nil {
				if inArray && n <= kerningSpace {
					operands = append(operands, " ")
				}
				numbers = append(numbers, n)
				continue
			}

			switch token {
			case "Tj", "TJ":
				sb.WriteString(strings.Join(operands, ""))
			case "'", "\"":
				newline()
				sb.WriteString(strings.Join(operands, ""))
			case "Td", "TD":
				if len(numbers) >= 1 && numbers[len(numbers)-1] != 0 {
					newline()
				} else {
					space()
				}
			case "T*", "Tm", "ET":
				newline()
			}
			operands = operands[:0]
			numbers = numbers[:0]
		}
	}
	return sb.String()
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// readLiteralString reads a (...) string starting at data[start], honouring
// nested parentheses and escapes. It returns the unescaped bytes and the
// index after the closing parenthesis.
func readLiteralString(data []byte, start int) ([]byte, int) {
	var out []byte
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			e := data[i]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
		case c == '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return out, i + 1
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
		i++
	}
	return out, i
}

// readHexString reads a <...> hex string starting at data[start].
func readHexString(data []byte, start int) ([]byte, int) {
	var digits []byte
	i := start + 1
	for i < len(data) && data[i] != '>' {
		if isHexDigit(data[i]) {
			digits = append(digits, data[i])
		}
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for k := range out {
		out[k] = hexValue(digits[2*k])<<4 | hexValue(digits[2*k+1])
	}
	return out, i + 1
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// decodePDFText decodes a PDF text string: UTF-16BE when it carries a byte
// order mark, otherwise single-byte text close enough to Windows-1252.
func decodePDFText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(decoded)
		}
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
