package retrieval

import (
	"context"
	"errors"
	"log/slog"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// DocumentSource is the read side of the document store.
type DocumentSource interface {
	List(project string) ([]domain.Document, error)
	Chunks(key domain.DocumentKey) ([]domain.Chunk, error)
}

// Searcher answers queries for a project over the resolved candidate set.
type Searcher struct {
	source DocumentSource
	scorer *Scorer
	logger *slog.Logger
}

// NewSearcher creates a searcher over source.
func NewSearcher(source DocumentSource, scorer *Scorer, logger *slog.Logger) *Searcher {
	if scorer == nil {
		scorer = &Scorer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{source: source, scorer: scorer, logger: logger}
}

// Candidates returns the documents eligible for retrieval in project.
// The global scope sees only global documents.
func (s *Searcher) Candidates(project string) ([]domain.Document, error) {
	if err := domain.ValidateScope(project); err != nil {
		return nil, err
	}
	global, err := s.source.List(domain.GlobalProject)
	if err != nil {
		return nil, err
	}
	if project == domain.GlobalProject {
		return Resolve(global, nil), nil
	}
	own, err := s.source.List(project)
	if err != nil {
		return nil, err
	}
	return Resolve(global, own), nil
}

// Search returns the top k chunks for query in project.
func (s *Searcher) Search(ctx context.Context, project, query string, k int) ([]domain.ScoredChunk, error) {
	docs, err := s.Candidates(project)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := s.source.Chunks(doc.Key())
		if err != nil {
			// Deleted between listing and loading.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, chunk := range chunks {
			candidates = append(candidates, Candidate{Key: doc.Key(), Chunk: chunk})
		}
	}

	results := s.scorer.Rank(query, candidates, k)
	s.logger.DebugContext(ctx, "Search completed", "project", project, "documents", len(docs), "chunks", len(candidates), "results", len(results))
	return results, nil
}
