package domain

// Chunk is a bounded slice of a document's extracted text, the unit of retrieval.
type Chunk struct {
	Index     int    `json:"chunk_index"`
	Content   string `json:"content"`
	CharCount int    `json:"char_count"`

	// StartOffset and EndOffset are byte offsets into the extracted text and
	// cover Content entirely, including the overlap prefix.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// Overlap is the byte length of the prefix duplicated from the previous chunk.
	Overlap int `json:"overlap"`
}

// IndexedChunk is the shape stored in the chunk index.
type IndexedChunk struct {
	Filename    string `json:"filename"`
	Version     string `json:"version"`
	ChunkIndex  int    `json:"chunk_index"`
	Content     string `json:"content"`
	CharCount   int    `json:"char_count"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Overlap     int    `json:"overlap"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	ChunkFieldFilename    = "filename"
	ChunkFieldVersion     = "version"
	ChunkFieldIndex       = "chunk_index"
	ChunkFieldContent     = "content"
	ChunkFieldCharCount   = "char_count"
	ChunkFieldStartOffset = "start_offset"
	ChunkFieldEndOffset   = "end_offset"
	ChunkFieldOverlap     = "overlap"
)

// ScoredChunk is a retrieval result.
type ScoredChunk struct {
	Project  string `json:"project"`
	Filename string `json:"filename"`
	Chunk    Chunk  `json:"chunk"`
	Score    int    `json:"score"`
}
