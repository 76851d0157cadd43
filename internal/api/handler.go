// Package api exposes the document pipeline over REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/chunker"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// multipartOverhead is the allowance for form boundaries and fields on top of the file itself.
const multipartOverhead = 1 << 20

// Pipeline is the write side: uploads and lifecycle requests.
type Pipeline interface {
	Upload(project, filename string, raw []byte, overwrite bool) (domain.Document, error)
	Retry(key domain.DocumentKey) (domain.Document, error)
	Reprocess(key domain.DocumentKey) (domain.Document, error)
	Delete(key domain.DocumentKey) error
	Move(key domain.DocumentKey, to string, overwrite bool) (domain.Document, error)
}

// Catalog is the read side of the store plus project management.
type Catalog interface {
	Get(key domain.DocumentKey) (domain.Document, error)
	List(project string) ([]domain.Document, error)
	Chunks(key domain.DocumentKey) ([]domain.Chunk, error)
	CreateProject(name string) (domain.Project, error)
	ListProjects() []domain.ProjectOverview
	ProjectOverview(name string) (domain.ProjectOverview, error)
	DeleteProject(name string, force bool) error
	MaxFileSize() int64
}

// Searcher ranks chunks for a query.
type Searcher interface {
	Search(ctx context.Context, project, query string, k int) ([]domain.ScoredChunk, error)
}

// Handler serves the REST surface.
type Handler struct {
	pipeline Pipeline
	catalog  Catalog
	searcher Searcher
	logger   *slog.Logger
}

// NewHandler creates a REST handler.
func NewHandler(pipeline Pipeline, catalog Catalog, searcher Searcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, catalog: catalog, searcher: searcher, logger: logger}
}

// NewRouter returns a chi router with the standard middleware stack and every route registered.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterHTTP(r)
	return r
}

// RegisterHTTP registers the REST endpoints on r.
func (h *Handler) RegisterHTTP(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", h.handleListProjects)
		r.Post("/", h.handleCreateProject)

		r.Route("/{project}", func(r chi.Router) {
			r.Get("/", h.handleProjectOverview)
			r.Delete("/", h.handleDeleteProject)
			r.Post("/search", h.handleSearch)

			r.Get("/documents", h.handleListDocuments)
			r.Post("/documents", h.handleUpload)

			r.Route("/documents/{filename}", func(r chi.Router) {
				r.Get("/", h.handleStatus)
				r.Delete("/", h.handleDelete)
				r.Post("/retry", h.handleRetry)
				r.Post("/reprocess", h.handleReprocess)
				r.Post("/move", h.handleMove)
				r.Get("/chunks", h.handleChunks)
			})
		})
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, code, err)
}

func documentKey(r *http.Request) domain.DocumentKey {
	return domain.DocumentKey{
		Project:  chi.URLParam(r, "project"),
		Filename: chi.URLParam(r, "filename"),
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"projects": h.catalog.ListProjects()})
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	project, err := h.catalog.CreateProject(req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleProjectOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.catalog.ProjectOverview(chi.URLParam(r, "project"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := h.catalog.DeleteProject(chi.URLParam(r, "project"), force); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.catalog.List(chi.URLParam(r, "project"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleUpload accepts a multipart form with a "file" part and an optional "overwrite" field.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.catalog.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		if code := statusFor(err); code == http.StatusRequestEntityTooLarge {
			writeError(w, code, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file: %w", err))
		return
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if int64(len(raw)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, limit))
		return
	}

	filename := r.FormValue("filename")
	if filename == "" {
		filename = uploadName(header.Filename)
	}
	overwrite, _ := strconv.ParseBool(r.FormValue("overwrite"))

	doc, err := h.pipeline.Upload(chi.URLParam(r, "project"), filename, raw, overwrite)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// uploadName drops any client-side directory from a multipart filename.
func uploadName(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := h.catalog.Get(documentKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := documentKey(r)
	if err := h.pipeline.Delete(key); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "project": key.Project, "filename": key.Filename})
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	h.restart(w, r, h.pipeline.Retry)
}

func (h *Handler) handleReprocess(w http.ResponseWriter, r *http.Request) {
	h.restart(w, r, h.pipeline.Reprocess)
}

func (h *Handler) restart(w http.ResponseWriter, r *http.Request, fn func(domain.DocumentKey) (domain.Document, error)) {
	doc, err := fn(documentKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "document": doc})
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To        string `json:"to"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	doc, err := h.pipeline.Move(documentKey(r), req.To, req.Overwrite)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleChunks lists a document's committed chunks; ?text=true adds the reassembled text.
func (h *Handler) handleChunks(w http.ResponseWriter, r *http.Request) {
	key := documentKey(r)
	doc, err := h.catalog.Get(key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	chunks, err := h.catalog.Chunks(key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}

	resp := map[string]any{
		"project":       key.Project,
		"filename":      key.Filename,
		"chunk_version": doc.ChunkVersion,
		"chunks":        chunks,
	}
	if withText, _ := strconv.ParseBool(r.URL.Query().Get("text")); withText {
		resp["text"] = chunker.Reassemble(chunks)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errors.New("query cannot be empty"))
		return
	}

	results, err := h.searcher.Search(r.Context(), chi.URLParam(r, "project"), req.Query, req.K)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if results == nil {
		results = []domain.ScoredChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
