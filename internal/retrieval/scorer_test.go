package retrieval

import (
	"strings"
	"testing"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

func TestScorer_Score(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		content string
		want    int
	}{
		{
			// phrase 10 + annual 2x2 + report 3x2 + proximity 5
			name:    "phrase with word repeats",
			query:   "annual report",
			content: "The annual report is out. Annual figures and report details, report.",
			want:    25,
		},
		{
			name:    "case folding",
			query:   "ANNUAL Report",
			content: "annual report",
			want:    19,
		},
		{
			name:    "single word has no phrase or proximity",
			query:   "report",
			content: "report reports",
			want:    3,
		},
		{
			name:    "chunk token is a fragment of the query word",
			query:   "reporting",
			content: "report",
			want:    1,
		},
		{
			name:    "short fragments do not count",
			query:   "annual",
			content: "an nu al",
			want:    0,
		},
		{
			name:    "words too far apart",
			query:   "annual report",
			content: "annual " + strings.Repeat("x ", 40) + "report",
			want:    4,
		},
		{
			name:    "length bonus applies to relevant chunks",
			query:   "report",
			content: "report " + strings.Repeat("z", 200),
			want:    4,
		},
		{
			name:    "length bonus alone is not relevance",
			query:   "report",
			content: strings.Repeat("z", 500),
			want:    0,
		},
		{
			name:    "single-letter query words are ignored",
			query:   "a",
			content: "a a a",
			want:    0,
		},
		{
			name:    "word boundaries",
			query:   "cat",
			content: "concatenate cat",
			want:    3,
		},
		{
			name:    "duplicate query words count once",
			query:   "report report",
			content: "report",
			want:    2,
		},
	}

	s := NewScorer(0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.query, tt.content); got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestScorer_Deterministic(t *testing.T) {
	s := NewScorer(0, 0)
	content := "The annual report is out. Annual figures and report details, report."

	first := s.Score("annual report", content)
	for i := 0; i < 100; i++ {
		if got := s.Score("annual report", content); got != first {
			t.Fatalf("run %d scored %d, first run scored %d", i, got, first)
		}
	}
}

func TestScorer_ProximityWindow(t *testing.T) {
	content := "annual " + strings.Repeat("x ", 40) + "report"

	if got := NewScorer(100, 0).Score("annual report", content); got != 9 {
		t.Errorf("wide window: got %d, want 9", got)
	}
	if got := NewScorer(10, 0).Score("annual report", content); got != 4 {
		t.Errorf("narrow window: got %d, want 4", got)
	}
}

func candidate(project, filename string, index int, content string) Candidate {
	return Candidate{
		Key:   domain.DocumentKey{Project: project, Filename: filename},
		Chunk: domain.Chunk{Index: index, Content: content},
	}
}

func TestScorer_Rank(t *testing.T) {
	candidates := []Candidate{
		candidate("global", "b.txt", 1, "report"),
		candidate("acme", "z.txt", 0, "nothing here"),
		candidate("global", "b.txt", 0, "report"),
		candidate("acme", "c.txt", 3, "annual report"),
		candidate("global", "a.txt", 2, "report"),
		candidate("acme", "d.txt", 0, "report"),
	}

	results := NewScorer(0, 0).Rank("annual report", candidates, 10)

	want := []string{
		"acme/c.txt#3",
		"acme/d.txt#0",
		"global/a.txt#2",
		"global/b.txt#0",
		"global/b.txt#1",
	}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, r := range results {
		got := r.Project + "/" + r.Filename + "#" + string(rune('0'+r.Chunk.Index))
		if got != want[i] {
			t.Errorf("result %d = %s, want %s", i, got, want[i])
		}
	}
	if results[0].Score <= results[1].Score {
		t.Error("results not ordered by score")
	}
}

func TestScorer_RankDefaultK(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 8; i++ {
		candidates = append(candidates, candidate("global", "a.txt", i, "report"))
	}

	if got := NewScorer(0, 0).Rank("report", candidates, 0); len(got) != DefaultK {
		t.Errorf("expected %d results, got %d", DefaultK, len(got))
	}
	if got := NewScorer(0, 3).Rank("report", candidates, 0); len(got) != 3 {
		t.Errorf("expected configured default of 3, got %d", len(got))
	}
	if got := NewScorer(0, 0).Rank("report", candidates, 2); len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
	if got := NewScorer(0, 0).Rank("", candidates, 2); len(got) != 0 {
		t.Errorf("empty query should return nothing, got %d", len(got))
	}
}
