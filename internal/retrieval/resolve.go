package retrieval

import (
	"sort"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

// Resolve overlays project documents on global documents by filename and
// returns the retrievable result ordered by filename.
//
// Shadowing happens before the status filter: a project document that is not
// completed still hides the global document with the same name.
func Resolve(global, project []domain.Document) []domain.Document {
	merged := make(map[string]domain.Document, len(global)+len(project))
	for _, doc := range global {
		merged[doc.Filename] = doc
	}
	for _, doc := range project {
		merged[doc.Filename] = doc
	}

	out := make([]domain.Document, 0, len(merged))
	for _, doc := range merged {
		if doc.Retrievable() {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}
