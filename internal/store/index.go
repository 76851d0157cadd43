package store

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

const (
	// IndexDirname is the chunk index directory inside a project directory
	IndexDirname = "chunks.bleve"

	// MaxBatchSize is the maximum number of chunks per batch
	MaxBatchSize = 100

	// MaxBatchBytes is the maximum content bytes per batch (10MB)
	MaxBatchBytes = 10 * 1024 * 1024

	// searchPageSize bounds the hits fetched per search round trip
	searchPageSize = 500
)

var chunkFields = []string{
	domain.ChunkFieldFilename,
	domain.ChunkFieldVersion,
	domain.ChunkFieldIndex,
	domain.ChunkFieldContent,
	domain.ChunkFieldCharCount,
	domain.ChunkFieldStartOffset,
	domain.ChunkFieldEndOffset,
	domain.ChunkFieldOverlap,
}

// ChunkIndex is the durable chunk storage of one project.
// Every chunk set is written under its own version; a set is visible to the
// rest of the store only once a record references that version.
type ChunkIndex struct {
	path  string
	index bleve.Index
}

// CreateIndexMapping creates the Bleve index mapping for chunk documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Content - analyzed, stored for retrieval
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldContent, contentField)

	filenameField := bleve.NewTextFieldMapping()
	filenameField.Analyzer = keyword.Name
	filenameField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldFilename, filenameField)

	versionField := bleve.NewTextFieldMapping()
	versionField.Analyzer = keyword.Name
	versionField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldVersion, versionField)

	for _, name := range []string{
		domain.ChunkFieldIndex,
		domain.ChunkFieldCharCount,
		domain.ChunkFieldStartOffset,
		domain.ChunkFieldEndOffset,
		domain.ChunkFieldOverlap,
	} {
		numField := bleve.NewNumericFieldMapping()
		numField.Store = true
		docMapping.AddFieldMappingsAt(name, numField)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// OpenChunkIndex opens the index at path, creating it if needed.
func OpenChunkIndex(path string) (*ChunkIndex, error) {
	index, err := bleve.Open(path)
	if err != nil {
		index, err = bleve.New(path, CreateIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create chunk index: %w", err)
		}
	}
	return &ChunkIndex{path: path, index: index}, nil
}

// chunkID is unique per chunk because versions are never reused.
func chunkID(version string, index int) string {
	return fmt.Sprintf("%s#%d", version, index)
}

// WriteVersion stores chunks under version. On failure the partially written
// version is removed on a best-effort basis.
func (c *ChunkIndex) WriteVersion(filename, version string, chunks []domain.Chunk) (err error) {
	defer func() {
		if err != nil {
			_ = c.DeleteVersion(version)
		}
	}()

	batch := c.index.NewBatch()
	batchBytes := 0

	for _, chunk := range chunks {
		doc := domain.IndexedChunk{
			Filename:    filename,
			Version:     version,
			ChunkIndex:  chunk.Index,
			Content:     chunk.Content,
			CharCount:   chunk.CharCount,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
			Overlap:     chunk.Overlap,
		}
		if err := batch.Index(chunkID(version, chunk.Index), doc); err != nil {
			return fmt.Errorf("failed to add chunk %d: %w", chunk.Index, err)
		}
		batchBytes += len(chunk.Content)

		if batch.Size() >= MaxBatchSize || batchBytes >= MaxBatchBytes {
			if err := c.index.Batch(batch); err != nil {
				return fmt.Errorf("batch index failed: %w", err)
			}
			batch = c.index.NewBatch()
			batchBytes = 0
		}
	}

	if batch.Size() > 0 {
		if err := c.index.Batch(batch); err != nil {
			return fmt.Errorf("final batch index failed: %w", err)
		}
	}
	return nil
}

// Load returns the chunks of filename stored under version, ordered by index.
func (c *ChunkIndex) Load(filename, version string) ([]domain.Chunk, error) {
	q := bleve.NewConjunctionQuery(
		termQuery(domain.ChunkFieldFilename, filename),
		termQuery(domain.ChunkFieldVersion, version),
	)

	var chunks []domain.Chunk
	err := c.scan(q, chunkFields, func(fields map[string]interface{}) {
		chunks = append(chunks, domain.Chunk{
			Index:       fieldInt(fields, domain.ChunkFieldIndex),
			Content:     fieldString(fields, domain.ChunkFieldContent),
			CharCount:   fieldInt(fields, domain.ChunkFieldCharCount),
			StartOffset: fieldInt(fields, domain.ChunkFieldStartOffset),
			EndOffset:   fieldInt(fields, domain.ChunkFieldEndOffset),
			Overlap:     fieldInt(fields, domain.ChunkFieldOverlap),
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	for i, chunk := range chunks {
		if chunk.Index != i {
			return nil, fmt.Errorf("chunk set %s of %s is incomplete: missing index %d", version, filename, i)
		}
	}
	return chunks, nil
}

// Versions returns every stored version mapped to its filename.
func (c *ChunkIndex) Versions() (map[string]string, error) {
	versions := make(map[string]string)
	fields := []string{domain.ChunkFieldFilename, domain.ChunkFieldVersion}
	err := c.scan(bleve.NewMatchAllQuery(), fields, func(f map[string]interface{}) {
		versions[fieldString(f, domain.ChunkFieldVersion)] = fieldString(f, domain.ChunkFieldFilename)
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// DeleteVersion removes every chunk stored under version.
func (c *ChunkIndex) DeleteVersion(version string) error {
	var ids []string
	q := termQuery(domain.ChunkFieldVersion, version)
	if err := c.scanIDs(q, func(id string) { ids = append(ids, id) }); err != nil {
		return err
	}
	return c.deleteIDs(ids)
}

// DeleteFile removes every version stored for filename.
func (c *ChunkIndex) DeleteFile(filename string) error {
	var ids []string
	q := termQuery(domain.ChunkFieldFilename, filename)
	if err := c.scanIDs(q, func(id string) { ids = append(ids, id) }); err != nil {
		return err
	}
	return c.deleteIDs(ids)
}

// DocCount returns the number of stored chunks across all versions.
func (c *ChunkIndex) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the underlying index.
func (c *ChunkIndex) Close() error {
	return c.index.Close()
}

func (c *ChunkIndex) deleteIDs(ids []string) error {
	for start := 0; start < len(ids); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(ids))
		batch := c.index.NewBatch()
		for _, id := range ids[start:end] {
			batch.Delete(id)
		}
		if err := c.index.Batch(batch); err != nil {
			return fmt.Errorf("batch delete failed: %w", err)
		}
	}
	return nil
}

// scan pages through every hit of q and hands the stored fields to fn.
func (c *ChunkIndex) scan(q query.Query, fields []string, fn func(map[string]interface{})) error {
	for from := 0; ; from += searchPageSize {
		req := bleve.NewSearchRequestOptions(q, searchPageSize, from, false)
		req.Fields = fields
		req.SortBy([]string{"_id"})
		res, err := c.index.Search(req)
		if err != nil {
			return fmt.Errorf("chunk index search failed: %w", err)
		}
		for _, hit := range res.Hits {
			fn(hit.Fields)
		}
		if len(res.Hits) < searchPageSize || uint64(from+len(res.Hits)) >= res.Total {
			return nil
		}
	}
}

func (c *ChunkIndex) scanIDs(q query.Query, fn func(string)) error {
	for from := 0; ; from += searchPageSize {
		req := bleve.NewSearchRequestOptions(q, searchPageSize, from, false)
		req.SortBy([]string{"_id"})
		res, err := c.index.Search(req)
		if err != nil {
			return fmt.Errorf("chunk index search failed: %w", err)
		}
		for _, hit := range res.Hits {
			fn(hit.ID)
		}
		if len(res.Hits) < searchPageSize || uint64(from+len(res.Hits)) >= res.Total {
			return nil
		}
	}
}

func termQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// fieldInt reads a stored numeric field; bleve returns numbers as float64.
func fieldInt(fields map[string]interface{}, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
