package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ProcessingStatus is the lifecycle state of a document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusError      ProcessingStatus = "error"
)

// ExtractionMethod identifies the extraction tier that produced a document's text.
type ExtractionMethod string

const (
	MethodNone           ExtractionMethod = ""
	MethodPrimary        ExtractionMethod = "primary"
	MethodLayoutFallback ExtractionMethod = "layout_fallback"
	MethodOCR            ExtractionMethod = "ocr"
)

// DocumentKey identifies a document inside the store.
type DocumentKey struct {
	Project  string `json:"project"`
	Filename string `json:"filename"`
}

// String returns the key as "project/filename".
func (k DocumentKey) String() string {
	return k.Project + "/" + k.Filename
}

// Less orders keys by project, then filename.
func (k DocumentKey) Less(other DocumentKey) bool {
	if k.Project != other.Project {
		return k.Project < other.Project
	}
	return k.Filename < other.Filename
}

// Document is the persisted record for one uploaded file.
// It carries no chunks; chunk sets are stored separately and referenced by ChunkVersion.
type Document struct {
	Project  string `json:"project"`
	Filename string `json:"filename"`

	Status       ProcessingStatus `json:"processing_status"`
	Progress     int              `json:"processing_progress"`
	TotalChars   int              `json:"total_chars"`
	TotalChunks  int              `json:"total_chunks"`
	ErrorDetail  string           `json:"error_detail,omitempty"`
	SourceSize   int64            `json:"source_size_bytes"`
	Method       ExtractionMethod `json:"extraction_method_used,omitempty"`
	ContentType  string           `json:"content_type,omitempty"`
	PageCount    int              `json:"page_count,omitempty"`
	Attempts     int              `json:"attempts"`
	ChunkVersion string           `json:"chunk_version,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Key returns the composite key of the document.
func (d Document) Key() DocumentKey {
	return DocumentKey{Project: d.Project, Filename: d.Filename}
}

// Extension returns the lower-cased file extension including the dot.
func (d Document) Extension() string {
	return FileExtension(d.Filename)
}

// Retrievable reports whether the document may contribute chunks to a search.
// A document being reprocessed keeps serving its committed chunk set until the
// new attempt commits.
func (d Document) Retrievable() bool {
	if d.TotalChunks == 0 {
		return false
	}
	switch d.Status {
	case StatusCompleted:
		return true
	case StatusProcessing:
		return d.ChunkVersion != ""
	}
	return false
}

// FileExtension returns the lower-cased extension of name, including the dot.
func FileExtension(name string) string {
	ext := path.Ext(name)
	b := []byte(ext)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ValidateFilename checks that name is a plain file name usable as a storage key.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q must not contain path separators", ErrInvalidFilename, name)
	case len(name) > 255:
		return fmt.Errorf("%w: name longer than 255 bytes", ErrInvalidFilename)
	}
	return nil
}
