package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

const docxMainPart = "word/document.xml"

// DocxTier walks word/document.xml and rebuilds paragraphs, tabs, line
// breaks and table rows.
type DocxTier struct{}

func (t *DocxTier) Method() domain.ExtractionMethod { return domain.MethodPrimary }

func (t *DocxTier) Attempt(_ context.Context, src Source, _ ProgressFunc) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	part := findZipPart(zr, docxMainPart)
	if part == nil {
		return "", fmt.Errorf("%s not found in archive", docxMainPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxMainPart, err)
	}
	defer func() { _ = rc.Close() }()

	return walkDocumentXML(rc)
}

func walkDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), fmt.Errorf("parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			case "tc":
				sb.WriteByte('\t')
			case "tr":
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), nil
}

// DocxScrapeTier collects every text node from all word/*.xml parts,
// including headers, footers and notes. Malformed parts are read up to the
// first error.
type DocxScrapeTier struct{}

func (t *DocxScrapeTier) Method() domain.ExtractionMethod { return domain.MethodLayoutFallback }

func (t *DocxScrapeTier) Attempt(_ context.Context, src Source, _ ProgressFunc) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var parts []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "word/") && strings.HasSuffix(f.Name, ".xml") {
			parts = append(parts, f)
		}
	}
	sort.Slice(parts, func(i, j int) bool {
		if (parts[i].Name == docxMainPart) != (parts[j].Name == docxMainPart) {
			return parts[i].Name == docxMainPart
		}
		return parts[i].Name < parts[j].Name
	})

	var sb strings.Builder
	for _, part := range parts {
		rc, err := part.Open()
		if err != nil {
			continue
		}
		scrapeTextNodes(rc, &sb)
		_ = rc.Close()
	}
	return sb.String(), nil
}

func scrapeTextNodes(r io.Reader, sb *strings.Builder) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	inText := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			return
		}
		switch el := tok.(type) {
		case xml.StartElement:
			inText = el.Name.Local == "t"
		case xml.CharData:
			if inText {
				sb.Write(el)
				sb.WriteByte(' ')
			}
		case xml.EndElement:
			inText = false
			if el.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		}
	}
}

func findZipPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
