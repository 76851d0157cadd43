package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandExecutor abstracts external command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its standard output.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return stdout.Bytes(), nil
}

// External tools used by the fallback tiers.
const (
	ToolPdftotext = "pdftotext"
	ToolPdftoppm  = "pdftoppm"
	ToolTesseract = "tesseract"
)

// ToolStatus reports whether an external tool is available.
type ToolStatus struct {
	Name  string
	Path  string
	Error error
}

// CheckTools looks up every external tool on PATH.
func CheckTools() []ToolStatus {
	tools := []string{ToolPdftotext, ToolPdftoppm, ToolTesseract}
	statuses := make([]ToolStatus, 0, len(tools))
	for _, name := range tools {
		path, err := exec.LookPath(name)
		statuses = append(statuses, ToolStatus{Name: name, Path: path, Error: err})
	}
	return statuses
}
