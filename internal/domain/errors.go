package domain

import "errors"

var (
	// ErrExtractionExhausted indicates no extraction tier produced viable text.
	ErrExtractionExhausted = errors.New("extraction exhausted")

	// ErrUnsupportedFormat indicates the file type is not recognised.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrTimeoutExceeded indicates a tier ran past its wall-clock budget.
	ErrTimeoutExceeded = errors.New("timeout exceeded")

	// ErrConcurrentProcessing indicates the document already has an active task.
	ErrConcurrentProcessing = errors.New("document is already being processed")

	// ErrStorageFailure indicates raw bytes or chunks could not be persisted.
	ErrStorageFailure = errors.New("storage failure")

	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidProject    = errors.New("invalid project")
	ErrProjectNotEmpty   = errors.New("project is not empty")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidFilename   = errors.New("invalid filename")
)
