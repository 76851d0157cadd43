package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// manifestState is an immutable snapshot of a project's records.
// Writers build a new snapshot and swap it in; readers never lock.
type manifestState struct {
	Version   int                        `json:"version"`
	Project   domain.Project             `json:"project"`
	Documents map[string]domain.Document `json:"documents"`
}

func (s *manifestState) clone() *manifestState {
	docs := make(map[string]domain.Document, len(s.Documents)+1)
	for k, v := range s.Documents {
		docs[k] = v
	}
	return &manifestState{Version: s.Version, Project: s.Project, Documents: docs}
}

// Manifest stores the document records of one project.
type Manifest struct {
	path    string
	writeMu sync.Mutex
	state   atomic.Pointer[manifestState]

	// retired is set once the project is being removed; guarded by writeMu.
	retired bool
}

// NewManifest creates an empty manifest for project, bound to path.
// Nothing is written until the first persisted update or Save.
func NewManifest(path string, project domain.Project) *Manifest {
	m := &Manifest{path: path}
	m.state.Store(&manifestState{
		Version:   ManifestVersion,
		Project:   project,
		Documents: make(map[string]domain.Document),
	})
	return m
}

// LoadManifest reads a manifest from disk.
// A missing file yields an empty manifest for project.
func LoadManifest(path string, project domain.Project) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(path, project), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var state manifestState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if state.Documents == nil {
		state.Documents = make(map[string]domain.Document)
	}
	if state.Project.Name == "" {
		state.Project = project
	}

	m := &Manifest{path: path}
	m.state.Store(&state)
	return m, nil
}

// Path returns the manifest file location.
func (m *Manifest) Path() string {
	return m.path
}

// Project returns the project metadata stored in the manifest.
func (m *Manifest) Project() domain.Project {
	return m.state.Load().Project
}

// Get returns the record for filename.
func (m *Manifest) Get(filename string) (domain.Document, bool) {
	doc, ok := m.state.Load().Documents[filename]
	return doc, ok
}

// List returns every record ordered by filename.
func (m *Manifest) List() []domain.Document {
	docs := m.state.Load().Documents
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// Len returns the number of records.
func (m *Manifest) Len() int {
	return len(m.state.Load().Documents)
}

// Update applies fn to a copy of the record for filename and persists the result.
// exists is false when no record was present; doc is then zero-valued.
// If fn fails nothing changes. If the write fails the in-memory state is left as it was
// and the error wraps domain.ErrStorageFailure.
func (m *Manifest) Update(filename string, fn func(doc *domain.Document, exists bool) error) (domain.Document, error) {
	return m.update(filename, fn, true)
}

// UpdateInMemory is Update without the disk write. The change becomes durable
// with the next persisted update. Used for progress reporting.
func (m *Manifest) UpdateInMemory(filename string, fn func(doc *domain.Document, exists bool) error) (domain.Document, error) {
	return m.update(filename, fn, false)
}

func (m *Manifest) update(filename string, fn func(doc *domain.Document, exists bool) error, persist bool) (domain.Document, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	current := m.state.Load()
	if m.retired {
		return domain.Document{}, fmt.Errorf("%w: project %s", domain.ErrNotFound, current.Project.Name)
	}
	doc, exists := current.Documents[filename]
	if err := fn(&doc, exists); err != nil {
		return domain.Document{}, err
	}
	doc.Filename = filename
	doc.Project = current.Project.Name

	next := current.clone()
	next.Documents[filename] = doc

	if persist {
		if err := writeManifest(m.path, next); err != nil {
			return domain.Document{}, err
		}
	}
	m.state.Store(next)
	return doc, nil
}

// Delete removes the record for filename and persists the result.
// guard, when non-nil, sees the current record and may veto the removal.
func (m *Manifest) Delete(filename string, guard func(doc domain.Document) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	current := m.state.Load()
	doc, ok := current.Documents[filename]
	if !ok || m.retired {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, current.Project.Name, filename)
	}
	if guard != nil {
		if err := guard(doc); err != nil {
			return err
		}
	}

	next := current.clone()
	delete(next.Documents, filename)

	if err := writeManifest(m.path, next); err != nil {
		return err
	}
	m.state.Store(next)
	return nil
}

// Retire refuses every later update, provided guard accepts the current records.
// guard runs under the write lock, so no record changes between the check and
// the retirement. A rejected guard leaves the manifest usable.
func (m *Manifest) Retire(guard func(docs []domain.Document) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.retired {
		return fmt.Errorf("%w: project %s", domain.ErrNotFound, m.state.Load().Project.Name)
	}
	if guard != nil {
		if err := guard(m.List()); err != nil {
			return err
		}
	}
	m.retired = true
	return nil
}

// Save writes the current state to disk.
func (m *Manifest) Save() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return writeManifest(m.path, m.state.Load())
}

// writeManifest writes state atomically using write-to-temp + rename.
func writeManifest(path string, state *manifestState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal manifest: %v", domain.ErrStorageFailure, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create manifest directory: %v", domain.ErrStorageFailure, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write manifest temp file: %v", domain.ErrStorageFailure, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to rename manifest file: %v", domain.ErrStorageFailure, err)
	}
	return nil
}
