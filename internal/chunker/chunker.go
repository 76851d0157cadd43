// Package chunker partitions extracted text into overlapping retrieval units.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
)

const (
	// DefaultMaxSize is the default maximum chunk length in characters.
	DefaultMaxSize = 6000

	// DefaultOverlap is the default number of characters shared by adjacent chunks.
	DefaultOverlap = 200
)

// Options controls chunk sizing. Lengths are counted in characters (runes).
type Options struct {
	MaxSize int
	Overlap int
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize, Overlap: DefaultOverlap}
}

// normalized fills zero values with defaults and keeps the overlap below the size.
func (o Options) normalized() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.MaxSize {
		o.Overlap = o.MaxSize / 4
	}
	return o
}

// Split levels, coarsest first. A cut is placed at the end of each match.
var levels = []*regexp.Regexp{
	regexp.MustCompile(`\n\s*\n`),
	regexp.MustCompile(`\n`),
	regexp.MustCompile(`[.!?]+["'\x{201D}\x{2019})\]]*\s+`),
}

type span struct {
	start, end int
}

// Chunk splits text into an ordered sequence of chunks.
//
// Every chunk after the first starts with up to Overlap characters copied from
// the end of the previous one; dropping that prefix from each chunk and
// concatenating the rest reproduces text exactly. Output is deterministic.
func Chunk(text string, opts Options) []domain.Chunk {
	if text == "" {
		return nil
	}
	opts = opts.normalized()
	budget := opts.MaxSize - opts.Overlap

	s := &splitter{text: text, budget: budget}
	s.split(0, len(text), 0)
	cores := pack(text, s.pieces, budget)

	chunks := make([]domain.Chunk, 0, len(cores))
	for i, core := range cores {
		start := core.start
		if i > 0 && opts.Overlap > 0 {
			start = overlapStart(text, cores[i-1], opts.Overlap)
		}
		content := text[start:core.end]
		chunks = append(chunks, domain.Chunk{
			Index:       i,
			Content:     content,
			CharCount:   utf8.RuneCountInString(content),
			StartOffset: start,
			EndOffset:   core.end,
			Overlap:     core.start - start,
		})
	}
	return chunks
}

// Reassemble concatenates chunks without their overlap prefixes.
func Reassemble(chunks []domain.Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		if c.Overlap > len(c.Content) {
			continue
		}
		sb.WriteString(c.Content[c.Overlap:])
	}
	return sb.String()
}

type splitter struct {
	text   string
	budget int
	pieces []span
}

func (s *splitter) split(start, end, level int) {
	if utf8.RuneCountInString(s.text[start:end]) <= s.budget {
		s.pieces = append(s.pieces, span{start, end})
		return
	}
	if level >= len(levels) {
		s.hardSplit(start, end)
		return
	}

	parts := cutAt(s.text, start, end, levels[level])
	for _, p := range parts {
		s.split(p.start, p.end, level+1)
	}
}

// hardSplit cuts at the budget, snapped back to the last whitespace when one exists.
func (s *splitter) hardSplit(start, end int) {
	for start < end {
		pos, n, lastBreak := start, 0, -1
		for pos < end && n < s.budget {
			r, size := utf8.DecodeRuneInString(s.text[pos:end])
			pos += size
			n++
			if unicode.IsSpace(r) {
				lastBreak = pos
			}
		}
		if pos >= end {
			s.pieces = append(s.pieces, span{start, end})
			return
		}

		cut := pos
		next, _ := utf8.DecodeRuneInString(s.text[pos:end])
		if !unicode.IsSpace(next) && lastBreak > start {
			cut = lastBreak
		}
		s.pieces = append(s.pieces, span{start, cut})
		start = cut
	}
}

// cutAt partitions [start, end) after every match of re. Separators stay with
// the preceding part so the parts cover the range without gaps.
func cutAt(text string, start, end int, re *regexp.Regexp) []span {
	sub := text[start:end]
	var parts []span
	prev := 0
	for _, loc := range re.FindAllStringIndex(sub, -1) {
		if loc[1] <= prev || loc[1] >= len(sub) {
			continue
		}
		parts = append(parts, span{start + prev, start + loc[1]})
		prev = loc[1]
	}
	return append(parts, span{start + prev, end})
}

// pack merges adjacent pieces greedily while they fit the budget.
func pack(text string, pieces []span, budget int) []span {
	var cores []span
	var cur span
	curLen := 0
	for i, p := range pieces {
		n := utf8.RuneCountInString(text[p.start:p.end])
		if i > 0 && curLen+n <= budget {
			cur.end = p.end
			curLen += n
			continue
		}
		if i > 0 {
			cores = append(cores, cur)
		}
		cur = p
		curLen = n
	}
	return append(cores, cur)
}

// overlapStart returns the byte offset where the overlap copied from prev begins.
// The start is moved forward to a word boundary; it may end up empty.
func overlapStart(text string, prev span, overlap int) int {
	pos := prev.end
	for n := 0; n < overlap && pos > prev.start; n++ {
		_, size := utf8.DecodeLastRuneInString(text[prev.start:pos])
		pos -= size
	}
	if pos == prev.start {
		return pos
	}

	before, _ := utf8.DecodeLastRuneInString(text[:pos])
	if unicode.IsSpace(before) {
		return skipSpace(text, pos, prev.end)
	}
	for pos < prev.end {
		r, size := utf8.DecodeRuneInString(text[pos:prev.end])
		pos += size
		if unicode.IsSpace(r) {
			return skipSpace(text, pos, prev.end)
		}
	}
	return prev.end
}

func skipSpace(text string, pos, end int) int {
	for pos < end {
		r, size := utf8.DecodeRuneInString(text[pos:end])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}
