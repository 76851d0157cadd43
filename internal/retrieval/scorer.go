package retrieval

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
	"golang.org/x/text/cases"
)

const (
	// DefaultK is the number of results returned when none is requested.
	DefaultK = 5

	// DefaultProximityWindow is the distance, in runes, within which two
	// distinct query words earn the proximity bonus.
	DefaultProximityWindow = 50

	phraseWeight    = 10
	exactWeight     = 2
	partialWeight   = 1
	proximityWeight = 5
	lengthUnit      = 100

	// minPartialRunes is the shortest chunk token that counts as a fragment of a query word.
	minPartialRunes = 3
)

// Candidate is a chunk eligible for scoring.
type Candidate struct {
	Key   domain.DocumentKey
	Chunk domain.Chunk
}

// Scorer ranks chunks against a query. The zero value uses the defaults.
type Scorer struct {
	ProximityWindow int
	DefaultK        int
}

// NewScorer creates a scorer with the given proximity window and default k.
// Non-positive values select the defaults.
func NewScorer(proximityWindow, defaultK int) *Scorer {
	return &Scorer{ProximityWindow: proximityWindow, DefaultK: defaultK}
}

func (s *Scorer) window() int {
	if s == nil || s.ProximityWindow <= 0 {
		return DefaultProximityWindow
	}
	return s.ProximityWindow
}

func (s *Scorer) defaultK() int {
	if s == nil || s.DefaultK <= 0 {
		return DefaultK
	}
	return s.DefaultK
}

// Rank scores every candidate and returns the top k by descending score.
// Ties are ordered by project, filename and chunk index. Chunks scoring zero are dropped.
func (s *Scorer) Rank(query string, candidates []Candidate, k int) []domain.ScoredChunk {
	if k <= 0 {
		k = s.defaultK()
	}
	q := parseQuery(query)
	if len(q.words) == 0 {
		return nil
	}

	results := make([]domain.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		score := s.score(q, c.Chunk.Content)
		if score <= 0 {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Project:  c.Key.Project,
			Filename: c.Key.Filename,
			Chunk:    c.Chunk,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Chunk.Index < b.Chunk.Index
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Score returns the score of content for query.
func (s *Scorer) Score(query, content string) int {
	return s.score(parseQuery(query), content)
}

type token struct {
	text string
	pos  int // rune offset in the folded text
}

type parsedQuery struct {
	phrase []string
	words  []string
}

func parseQuery(query string) parsedQuery {
	var q parsedQuery
	seen := make(map[string]bool)
	for _, tok := range tokenize(fold(query)) {
		q.phrase = append(q.phrase, tok.text)
		if utf8.RuneCountInString(tok.text) < 2 || seen[tok.text] {
			continue
		}
		seen[tok.text] = true
		q.words = append(q.words, tok.text)
	}
	return q
}

func (s *Scorer) score(q parsedQuery, content string) int {
	if len(q.words) == 0 {
		return 0
	}
	tokens := tokenize(fold(content))

	relevance := 0
	if len(q.words) >= 2 && len(q.phrase) >= 2 {
		relevance += phraseWeight * countPhrase(tokens, q.phrase)
	}

	// Positions of exact matches per query word, for the proximity bonus.
	positions := make([][]int, len(q.words))
	for _, tok := range tokens {
		exact := false
		for wi, w := range q.words {
			if tok.text == w {
				relevance += exactWeight
				positions[wi] = append(positions[wi], tok.pos)
				exact = true
			}
		}
		if exact {
			continue
		}
		for _, w := range q.words {
			if isPartial(tok.text, w) {
				relevance += partialWeight
				break
			}
		}
	}

	if s.withinWindow(positions) {
		relevance += proximityWeight
	}

	if relevance == 0 {
		return 0
	}
	return relevance + utf8.RuneCountInString(content)/lengthUnit
}

// withinWindow reports whether two distinct query words occur close together.
func (s *Scorer) withinWindow(positions [][]int) bool {
	window := s.window()
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			for _, a := range positions[i] {
				for _, b := range positions[j] {
					if abs(a-b) <= window {
						return true
					}
				}
			}
		}
	}
	return false
}

// countPhrase counts non-overlapping occurrences of phrase in tokens.
func countPhrase(tokens []token, phrase []string) int {
	count := 0
	for i := 0; i+len(phrase) <= len(tokens); {
		match := true
		for j, p := range phrase {
			if tokens[i+j].text != p {
				match = false
				break
			}
		}
		if match {
			count++
			i += len(phrase)
		} else {
			i++
		}
	}
	return count
}

func isPartial(tok, word string) bool {
	if tok == word {
		return false
	}
	if strings.Contains(tok, word) {
		return true
	}
	return utf8.RuneCountInString(tok) >= minPartialRunes && strings.Contains(word, tok)
}

// fold applies Unicode case folding. Casers are stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// tokenize splits s into maximal runs of letters and digits.
func tokenize(s string) []token {
	var tokens []token
	start, startPos := -1, 0
	pos := 0
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start, startPos = i, pos
			}
		} else if start >= 0 {
			tokens = append(tokens, token{text: s[start:i], pos: startPos})
			start = -1
		}
		pos++
	}
	if start >= 0 {
		tokens = append(tokens, token{text: s[start:], pos: startPos})
	}
	return tokens
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
