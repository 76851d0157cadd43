package domain

import (
	"fmt"
	"regexp"
	"time"
)

// GlobalProject is the reserved scope for documents outside any project.
const GlobalProject = "global"

// MaxProjectNameLength bounds project names.
const MaxProjectNameLength = 64

var projectNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Project is a named isolation scope for documents.
type Project struct {
	Name      string    `json:"name"`
	IsGlobal  bool      `json:"is_global"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectOverview summarises a project's documents.
type ProjectOverview struct {
	Project
	Documents  int   `json:"documents"`
	Completed  int   `json:"completed"`
	Processing int   `json:"processing"`
	Pending    int   `json:"pending"`
	Errors     int   `json:"errors"`
	TotalBytes int64 `json:"total_bytes"`
}

// ValidateProjectName checks that name is usable as a user-created project.
// The reserved global name is rejected here.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidProject)
	}
	if len(name) > MaxProjectNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidProject, MaxProjectNameLength)
	}
	if !projectNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q may only contain letters, digits, '_' and '-'", ErrInvalidProject, name)
	}
	if name == GlobalProject {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidProject, name)
	}
	return nil
}

// ValidateScope accepts either the global scope or a valid project name.
func ValidateScope(name string) error {
	if name == GlobalProject {
		return nil
	}
	return ValidateProjectName(name)
}
