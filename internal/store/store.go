package store

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

const (
	// FilesDirname holds the raw uploads of a project
	FilesDirname = "files"

	// ProjectsDirname holds one directory per user project
	ProjectsDirname = "projects"

	// DefaultMaxFileSize is the upload limit when none is configured (100MB)
	DefaultMaxFileSize int64 = 100 * 1024 * 1024

	// InterruptedDetail is recorded on documents found mid-processing at start-up
	InterruptedDetail = "interrupted: processing did not finish before shutdown"
)

// Options configures a Store.
type Options struct {
	DataDir     string
	MaxFileSize int64
	Logger      *slog.Logger
}

// Outcome is the result of a successful processing attempt.
type Outcome struct {
	Chunks     []domain.Chunk
	TotalChars int
	Method     domain.ExtractionMethod
	PageCount  int
}

// Store is the durable record of every document: raw bytes, records and chunk sets.
type Store struct {
	dataDir     string
	maxFileSize int64
	logger      *slog.Logger
	lock        *FileLock

	mu       sync.RWMutex
	projects map[string]*projectStore
}

// projectStore is one project's namespace on disk.
type projectStore struct {
	name     string
	dir      string
	manifest *Manifest
	index    *ChunkIndex

	// sets maps chunk version to its immutable chunk list. Readers resolve a
	// record's ChunkVersion against the current snapshot; writers replace the
	// whole map under commitMu.
	commitMu sync.Mutex
	sets     atomic.Pointer[map[string][]domain.Chunk]
}

// Open locks the data directory, loads every project and recovers
// documents interrupted by a previous shutdown.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Join(opts.DataDir, ProjectsDirname), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := NewFileLock(filepath.Join(opts.DataDir, LockFilename))
	if err := lock.Acquire(); err != nil {
		return nil, err
	}

	s := &Store{
		dataDir:     opts.DataDir,
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger,
		lock:        lock,
		projects:    make(map[string]*projectStore),
	}

	if err := s.loadAll(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	global, err := s.openProject(domain.GlobalProject, filepath.Join(s.dataDir, domain.GlobalProject), true)
	if err != nil {
		return err
	}
	s.projects[domain.GlobalProject] = global

	entries, err := os.ReadDir(filepath.Join(s.dataDir, ProjectsDirname))
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if err := domain.ValidateProjectName(name); err != nil {
			s.logger.Warn("Skipping unrecognised project directory", "dir", name, "error", err)
			continue
		}
		p, err := s.openProject(name, s.projectDir(name), false)
		if err != nil {
			return err
		}
		s.projects[name] = p
	}
	return nil
}

func (s *Store) projectDir(name string) string {
	if name == domain.GlobalProject {
		return filepath.Join(s.dataDir, domain.GlobalProject)
	}
	return filepath.Join(s.dataDir, ProjectsDirname, name)
}

// openProject loads a project directory, creating it when absent.
func (s *Store) openProject(name, dir string, global bool) (*projectStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, FilesDirname), 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory %s: %w", name, err)
	}

	manifestPath := filepath.Join(dir, ManifestFilename)
	_, statErr := os.Stat(manifestPath)
	manifest, err := LoadManifest(manifestPath, domain.Project{Name: name, IsGlobal: global, CreatedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", name, err)
	}
	if os.IsNotExist(statErr) {
		if err := manifest.Save(); err != nil {
			return nil, fmt.Errorf("project %s: %w", name, err)
		}
	}

	index, err := OpenChunkIndex(filepath.Join(dir, IndexDirname))
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", name, err)
	}

	p := &projectStore{name: name, dir: dir, manifest: manifest, index: index}
	empty := make(map[string][]domain.Chunk)
	p.sets.Store(&empty)

	if err := s.recoverProject(p); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("project %s: %w", name, err)
	}
	return p, nil
}

// recoverProject fails interrupted records, loads committed chunk sets and
// prunes anything no record references.
func (s *Store) recoverProject(p *projectStore) error {
	sets := make(map[string][]domain.Chunk)

	for _, doc := range p.manifest.List() {
		if doc.Status == domain.StatusProcessing {
			s.logger.Warn("Recovering interrupted document", "project", p.name, "filename", doc.Filename)
			if _, err := p.manifest.Update(doc.Filename, func(d *domain.Document, _ bool) error {
				d.Status = domain.StatusError
				d.ErrorDetail = InterruptedDetail
				return nil
			}); err != nil {
				return err
			}
		}

		if doc.ChunkVersion == "" {
			continue
		}
		chunks, err := p.index.Load(doc.Filename, doc.ChunkVersion)
		if err == nil && len(chunks) == 0 {
			err = errors.New("chunk set is empty")
		}
		if err != nil {
			s.logger.Error("Chunk set unavailable", "project", p.name, "filename", doc.Filename, "version", doc.ChunkVersion, "error", err)
			if _, uerr := p.manifest.Update(doc.Filename, func(d *domain.Document, _ bool) error {
				d.ChunkVersion = ""
				d.TotalChunks = 0
				if d.Status == domain.StatusCompleted {
					d.Status = domain.StatusError
					d.ErrorDetail = fmt.Sprintf("chunk set unavailable: %v", err)
				}
				return nil
			}); uerr != nil {
				return uerr
			}
			continue
		}
		sets[doc.ChunkVersion] = chunks
	}
	p.sets.Store(&sets)

	versions, err := p.index.Versions()
	if err != nil {
		return err
	}
	for version, filename := range versions {
		if _, ok := sets[version]; ok {
			continue
		}
		s.logger.Info("Pruning orphaned chunk set", "project", p.name, "filename", filename, "version", version)
		if err := p.index.DeleteVersion(version); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(filepath.Join(p.dir, FilesDirname))
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	for _, entry := range entries {
		if _, ok := p.manifest.Get(entry.Name()); ok {
			continue
		}
		if !isTempName(entry.Name()) {
			s.logger.Info("Pruning orphaned raw file", "project", p.name, "filename", entry.Name())
		}
		_ = os.RemoveAll(filepath.Join(p.dir, FilesDirname, entry.Name()))
	}
	return nil
}

// Close closes every index and releases the data directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, p := range s.projects {
		if err := p.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", name, err))
		}
	}
	s.projects = make(map[string]*projectStore)
	if err := s.lock.Release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DataDir returns the root directory of the store.
func (s *Store) DataDir() string {
	return s.dataDir
}

// MaxFileSize returns the upload size limit in bytes.
func (s *Store) MaxFileSize() int64 {
	return s.maxFileSize
}

func (s *Store) project(name string) (*projectStore, error) {
	if err := domain.ValidateScope(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	p, ok := s.projects[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, name)
	}
	return p, nil
}

func (p *projectStore) rawPath(filename string) string {
	return filepath.Join(p.dir, FilesDirname, filename)
}

// swapSets applies fn to a copy of the version map and publishes it.
// Callers must hold commitMu.
func (p *projectStore) swapSets(fn func(sets map[string][]domain.Chunk)) {
	current := *p.sets.Load()
	next := make(map[string][]domain.Chunk, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	fn(next)
	p.sets.Store(&next)
}

// dropVersion removes a superseded chunk set from memory and disk.
func (s *Store) dropVersion(p *projectStore, version string) {
	if version == "" {
		return
	}
	p.commitMu.Lock()
	p.swapSets(func(sets map[string][]domain.Chunk) { delete(sets, version) })
	p.commitMu.Unlock()

	if err := p.index.DeleteVersion(version); err != nil {
		// Orphans are pruned at the next start-up.
		s.logger.Warn("Failed to delete chunk set", "project", p.name, "version", version, "error", err)
	}
}

// CreateDocument persists raw under (project, filename) and records it as pending.
// An existing key is replaced only when overwrite is set and the document is not processing.
func (s *Store) CreateDocument(project, filename string, raw []byte, overwrite bool) (domain.Document, error) {
	if err := domain.ValidateFilename(filename); err != nil {
		return domain.Document{}, err
	}
	if int64(len(raw)) > s.maxFileSize {
		return domain.Document{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, len(raw), s.maxFileSize)
	}
	p, err := s.project(project)
	if err != nil {
		return domain.Document{}, err
	}

	key := domain.DocumentKey{Project: project, Filename: filename}
	if existing, ok := p.manifest.Get(filename); ok {
		if err := checkReplaceable(existing, overwrite); err != nil {
			return domain.Document{}, err
		}
	}

	tmp, err := os.CreateTemp(filepath.Join(p.dir, FilesDirname), ".upload-*")
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: failed to create temp file: %v", domain.ErrStorageFailure, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return domain.Document{}, fmt.Errorf("%w: failed to write %s: %v", domain.ErrStorageFailure, key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return domain.Document{}, fmt.Errorf("%w: failed to sync %s: %v", domain.ErrStorageFailure, key, err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Document{}, fmt.Errorf("%w: failed to close %s: %v", domain.ErrStorageFailure, key, err)
	}

	var previousVersion string
	renamed := false
	doc, err := p.manifest.Update(filename, func(d *domain.Document, exists bool) error {
		if exists {
			if err := checkReplaceable(*d, overwrite); err != nil {
				return err
			}
		}
		if err := os.Rename(tmpPath, p.rawPath(filename)); err != nil {
			return fmt.Errorf("%w: failed to store %s: %v", domain.ErrStorageFailure, key, err)
		}
		renamed = true
		previousVersion = d.ChunkVersion
		*d = domain.Document{
			Status:      domain.StatusPending,
			SourceSize:  int64(len(raw)),
			ContentType: contentType(filename),
			UploadedAt:  time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		if renamed {
			if _, ok := p.manifest.Get(filename); !ok {
				_ = os.Remove(p.rawPath(filename))
			}
		}
		return domain.Document{}, err
	}

	s.dropVersion(p, previousVersion)
	s.logger.Info("Document stored", "project", project, "filename", filename, "bytes", len(raw))
	return doc, nil
}

func checkReplaceable(existing domain.Document, overwrite bool) error {
	key := existing.Key()
	if !overwrite {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, key)
	}
	if existing.Status == domain.StatusProcessing {
		return fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, key)
	}
	return nil
}

func contentType(filename string) string {
	if t := mime.TypeByExtension(domain.FileExtension(filename)); t != "" {
		return t
	}
	switch domain.FileExtension(filename) {
	case ".md":
		return "text/markdown"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

// Get returns the latest committed record for key.
func (s *Store) Get(key domain.DocumentKey) (domain.Document, error) {
	p, err := s.project(key.Project)
	if err != nil {
		return domain.Document{}, err
	}
	doc, ok := p.manifest.Get(key.Filename)
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return doc, nil
}

// List returns every record of project ordered by filename.
func (s *Store) List(project string) ([]domain.Document, error) {
	p, err := s.project(project)
	if err != nil {
		return nil, err
	}
	return p.manifest.List(), nil
}

// RawPath returns the location of the raw bytes for key.
// The file is written once at upload and must be treated as read-only.
func (s *Store) RawPath(key domain.DocumentKey) (string, error) {
	p, err := s.project(key.Project)
	if err != nil {
		return "", err
	}
	if _, ok := p.manifest.Get(key.Filename); !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return p.rawPath(key.Filename), nil
}

// ReadRaw returns the raw bytes stored for key.
func (s *Store) ReadRaw(key domain.DocumentKey) ([]byte, error) {
	path, err := s.RawPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrStorageFailure, key, err)
	}
	return data, nil
}

// MarkProcessing moves key into processing and starts a new attempt.
// The committed chunk set is left untouched.
func (s *Store) MarkProcessing(key domain.DocumentKey) (domain.Document, error) {
	p, err := s.project(key.Project)
	if err != nil {
		return domain.Document{}, err
	}
	return p.manifest.Update(key.Filename, func(d *domain.Document, exists bool) error {
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		if d.Status == domain.StatusProcessing {
			return fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, key)
		}
		d.Status = domain.StatusProcessing
		d.Progress = 0
		d.ErrorDetail = ""
		d.Attempts++
		return nil
	})
}

// UpdateProgress records in-flight progress. Values never decrease within an
// attempt and are ignored unless the document is processing.
func (s *Store) UpdateProgress(key domain.DocumentKey, progress int) error {
	p, err := s.project(key.Project)
	if err != nil {
		return err
	}
	progress = max(0, min(progress, 100))
	_, err = p.manifest.UpdateInMemory(key.Filename, func(d *domain.Document, exists bool) error {
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		if d.Status == domain.StatusProcessing && progress > d.Progress {
			d.Progress = progress
		}
		return nil
	})
	return err
}

// CommitChunks stores out as the document's chunk set and completes the attempt.
// The new set is written under a fresh version and becomes visible in the same
// record update that marks the document completed; the superseded set is removed after.
func (s *Store) CommitChunks(key domain.DocumentKey, out Outcome) (domain.Document, error) {
	if len(out.Chunks) == 0 {
		return domain.Document{}, fmt.Errorf("%w: no chunks produced for %s", domain.ErrExtractionExhausted, key)
	}
	p, err := s.project(key.Project)
	if err != nil {
		return domain.Document{}, err
	}
	if doc, ok := p.manifest.Get(key.Filename); !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	} else if doc.Status != domain.StatusProcessing {
		return domain.Document{}, fmt.Errorf("%w: %s is %s", domain.ErrInvalidTransition, key, doc.Status)
	}

	version := uuid.NewString()
	if err := p.index.WriteVersion(key.Filename, version, out.Chunks); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	chunks := make([]domain.Chunk, len(out.Chunks))
	copy(chunks, out.Chunks)

	p.commitMu.Lock()
	p.swapSets(func(sets map[string][]domain.Chunk) { sets[version] = chunks })
	p.commitMu.Unlock()

	var previous string
	doc, err := p.manifest.Update(key.Filename, func(d *domain.Document, exists bool) error {
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		if d.Status != domain.StatusProcessing {
			return fmt.Errorf("%w: %s is %s", domain.ErrInvalidTransition, key, d.Status)
		}
		previous = d.ChunkVersion
		now := time.Now().UTC()
		d.Status = domain.StatusCompleted
		d.Progress = 100
		d.TotalChars = out.TotalChars
		d.TotalChunks = len(chunks)
		d.Method = out.Method
		d.PageCount = out.PageCount
		d.ErrorDetail = ""
		d.ChunkVersion = version
		d.ProcessedAt = &now
		return nil
	})
	if err != nil {
		s.dropVersion(p, version)
		return domain.Document{}, err
	}

	s.dropVersion(p, previous)
	return doc, nil
}

// MarkError fails the current attempt. Progress stays frozen and the
// committed chunk set, if any, is kept.
func (s *Store) MarkError(key domain.DocumentKey, detail string) (domain.Document, error) {
	p, err := s.project(key.Project)
	if err != nil {
		return domain.Document{}, err
	}
	return p.manifest.Update(key.Filename, func(d *domain.Document, exists bool) error {
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		now := time.Now().UTC()
		d.Status = domain.StatusError
		d.ErrorDetail = detail
		d.ProcessedAt = &now
		return nil
	})
}

// Chunks returns the committed chunk set of key. The slice is shared and must not be modified.
func (s *Store) Chunks(key domain.DocumentKey) ([]domain.Chunk, error) {
	p, err := s.project(key.Project)
	if err != nil {
		return nil, err
	}
	doc, ok := p.manifest.Get(key.Filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if doc.ChunkVersion == "" {
		return nil, nil
	}
	return (*p.sets.Load())[doc.ChunkVersion], nil
}

// Delete removes the record, its chunks and its raw bytes.
// Documents being processed cannot be deleted.
func (s *Store) Delete(key domain.DocumentKey) error {
	p, err := s.project(key.Project)
	if err != nil {
		return err
	}

	var version string
	err = p.manifest.Delete(key.Filename, func(d domain.Document) error {
		if d.Status == domain.StatusProcessing {
			return fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, key)
		}
		version = d.ChunkVersion
		return nil
	})
	if err != nil {
		return err
	}

	s.dropVersion(p, version)
	if err := p.index.DeleteFile(key.Filename); err != nil {
		s.logger.Warn("Failed to delete chunks", "project", key.Project, "filename", key.Filename, "error", err)
	}
	if err := os.Remove(p.rawPath(key.Filename)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to delete raw file", "project", key.Project, "filename", key.Filename, "error", err)
	}
	s.logger.Info("Document deleted", "project", key.Project, "filename", key.Filename)
	return nil
}

// Pending returns every document waiting for processing, across all projects.
func (s *Store) Pending() []domain.DocumentKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []domain.DocumentKey
	for _, p := range s.projects {
		for _, doc := range p.manifest.List() {
			if doc.Status == domain.StatusPending {
				keys = append(keys, doc.Key())
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// CreateProject creates an empty project.
func (s *Store) CreateProject(name string) (domain.Project, error) {
	if err := domain.ValidateProjectName(name); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[name]; ok {
		return domain.Project{}, fmt.Errorf("%w: project %s", domain.ErrAlreadyExists, name)
	}
	p, err := s.openProject(name, s.projectDir(name), false)
	if err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	s.projects[name] = p
	s.logger.Info("Project created", "project", name)
	return p.manifest.Project(), nil
}

// ProjectOverview returns a project with its document counters.
func (s *Store) ProjectOverview(name string) (domain.ProjectOverview, error) {
	p, err := s.project(name)
	if err != nil {
		return domain.ProjectOverview{}, err
	}
	return overview(p), nil
}

func overview(p *projectStore) domain.ProjectOverview {
	o := domain.ProjectOverview{Project: p.manifest.Project()}
	for _, doc := range p.manifest.List() {
		o.Documents++
		o.TotalBytes += doc.SourceSize
		switch doc.Status {
		case domain.StatusCompleted:
			o.Completed++
		case domain.StatusProcessing:
			o.Processing++
		case domain.StatusPending:
			o.Pending++
		case domain.StatusError:
			o.Errors++
		}
	}
	return o
}

// ListProjects returns every project, global first, then by name.
func (s *Store) ListProjects() []domain.ProjectOverview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProjectOverview, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, overview(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsGlobal != out[j].IsGlobal {
			return out[i].IsGlobal
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DeleteProject removes a project and everything in it.
// Non-empty projects require force; projects with documents in processing are refused.
func (s *Store) DeleteProject(name string, force bool) error {
	if name == domain.GlobalProject {
		return fmt.Errorf("%w: the global project cannot be deleted", domain.ErrInvalidProject)
	}
	if err := domain.ValidateProjectName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[name]
	if !ok {
		return fmt.Errorf("%w: project %s", domain.ErrNotFound, name)
	}
	// Workers move records to processing without s.mu; retiring the manifest
	// makes the check and the refusal of later transitions one step.
	var count int
	err := p.manifest.Retire(func(docs []domain.Document) error {
		if len(docs) > 0 && !force {
			return fmt.Errorf("%w: %s has %d documents", domain.ErrProjectNotEmpty, name, len(docs))
		}
		for _, doc := range docs {
			if doc.Status == domain.StatusProcessing {
				return fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, doc.Key())
			}
		}
		count = len(docs)
		return nil
	})
	if err != nil {
		return err
	}

	delete(s.projects, name)
	if err := p.index.Close(); err != nil {
		s.logger.Warn("Failed to close chunk index", "project", name, "error", err)
	}
	if err := os.RemoveAll(p.dir); err != nil {
		return fmt.Errorf("%w: failed to remove project %s: %v", domain.ErrStorageFailure, name, err)
	}
	s.logger.Info("Project deleted", "project", name, "documents", count)
	return nil
}

// MoveDocument moves a document, with its raw bytes and chunk set, to another project.
// The record keeps its status. Documents being processed cannot be moved.
func (s *Store) MoveDocument(key domain.DocumentKey, to string, overwrite bool) (domain.Document, error) {
	if key.Project == to {
		return domain.Document{}, fmt.Errorf("%w: %s is already in %s", domain.ErrInvalidProject, key.Filename, to)
	}
	src, err := s.project(key.Project)
	if err != nil {
		return domain.Document{}, err
	}
	dst, err := s.project(to)
	if err != nil {
		return domain.Document{}, err
	}

	doc, ok := src.manifest.Get(key.Filename)
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if doc.Status == domain.StatusProcessing {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, key)
	}
	if existing, ok := dst.manifest.Get(key.Filename); ok {
		if err := checkReplaceable(existing, overwrite); err != nil {
			return domain.Document{}, err
		}
	}

	raw, err := os.ReadFile(src.rawPath(key.Filename))
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: failed to read %s: %v", domain.ErrStorageFailure, key, err)
	}
	if err := writeFileAtomic(dst.rawPath(key.Filename), raw); err != nil {
		return domain.Document{}, err
	}

	var newVersion string
	if doc.ChunkVersion != "" {
		if chunks := (*src.sets.Load())[doc.ChunkVersion]; len(chunks) > 0 {
			newVersion = uuid.NewString()
			if err := dst.index.WriteVersion(key.Filename, newVersion, chunks); err != nil {
				return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
			}
			dst.commitMu.Lock()
			dst.swapSets(func(sets map[string][]domain.Chunk) { sets[newVersion] = chunks })
			dst.commitMu.Unlock()
		}
	}

	var replaced string
	moved, err := dst.manifest.Update(key.Filename, func(d *domain.Document, exists bool) error {
		if exists {
			if err := checkReplaceable(*d, overwrite); err != nil {
				return err
			}
			replaced = d.ChunkVersion
		}
		*d = doc
		d.ChunkVersion = newVersion
		if newVersion == "" {
			d.TotalChunks = 0
		}
		return nil
	})
	if err != nil {
		s.dropVersion(dst, newVersion)
		if _, ok := dst.manifest.Get(key.Filename); !ok {
			_ = os.Remove(dst.rawPath(key.Filename))
		}
		return domain.Document{}, err
	}
	s.dropVersion(dst, replaced)

	if err := s.Delete(key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("Moved document could not be removed from source", "project", key.Project, "filename", key.Filename, "error", err)
	}
	s.logger.Info("Document moved", "filename", key.Filename, "from", key.Project, "to", to)
	return moved, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", domain.ErrStorageFailure, filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: failed to rename %s: %v", domain.ErrStorageFailure, filepath.Base(path), err)
	}
	return nil
}

// isTempName reports whether name is a scratch file of the store.
func isTempName(name string) bool {
	return strings.HasPrefix(name, ".upload-") || strings.HasSuffix(name, ".tmp")
}
