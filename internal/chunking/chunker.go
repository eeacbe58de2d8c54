// Package chunking splits raw input text into bounded chunks for the
// extraction pipeline, using a paragraph -> sentence -> character
// progressive split and a strict fixed-size overlap between consecutive
// chunks.
package chunking

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/google/uuid"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// mdParser recognizes markdown heading structure in ingested text so the
// splitter can prefer section boundaries over blind paragraph breaks.
var mdParser = goldmark.New()

// Chunk is one piece of a larger input, annotated with its position in
// the run that produced it.
type Chunk struct {
	Content string
	Meta    types.ChunkMeta
}

// Splitter splits text according to the configured max size and overlap.
type Splitter struct {
	maxSize int
	overlap int
}

// NewSplitter builds a Splitter from chunking configuration. It panics if
// the configuration was not validated (overlap must be smaller than max
// size — config.Validate enforces this at boot).
func NewSplitter(cfg config.ChunkingConfig) *Splitter {
	if cfg.OverlapSize >= cfg.MaxChunkSize {
		panic("chunking: overlap size must be smaller than max chunk size")
	}
	return &Splitter{maxSize: cfg.MaxChunkSize, overlap: cfg.OverlapSize}
}

// Split breaks content into chunks sharing one run_id. Every chunk after
// the first begins with exactly OverlapSize characters carried over from
// the end of the previous chunk, except when the previous chunk's content
// is itself shorter than OverlapSize, in which case the whole of it is
// carried over.
func (s *Splitter) Split(content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("chunking: content cannot be empty")
	}

	runID := uuid.NewString()
	pieces := s.progressiveSplit(content)
	chunks := make([]Chunk, 0, len(pieces))

	carry := ""
	for i, piece := range pieces {
		body := piece
		hasOverlap := carry != ""
		if hasOverlap {
			body = carry + piece
		}
		chunks = append(chunks, Chunk{
			Content: body,
			Meta: types.ChunkMeta{
				RunID:       runID,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				ChunkSize:   len(body),
				HasOverlap:  hasOverlap,
			},
		})
		carry = tailOverlap(body, s.overlap)
	}

	return chunks, nil
}

// tailOverlap returns the trailing n characters of s, or the whole of s
// if it is shorter than n.
func tailOverlap(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// progressiveSplit splits content into pieces no longer than maxSize,
// trying markdown heading boundaries first (when the input is
// heading-structured), then paragraph boundaries, then sentence
// boundaries, then a hard character cut — in that order, each attempted
// only on pieces still over the limit.
func (s *Splitter) progressiveSplit(content string) []string {
	sections := splitOnMarkdownHeadings(content)
	if sections == nil {
		sections = []string{content}
	}

	var paragraphs []string
	for _, sec := range sections {
		paragraphs = append(paragraphs, splitOnBoundary(sec, "\n\n")...)
	}

	result := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		result = append(result, s.splitOversized(p)...)
	}
	return mergeSmall(result, s.maxSize)
}

// splitOnMarkdownHeadings walks content's markdown AST and groups its
// top-level blocks into sections that each start at a heading. It
// returns nil when content has fewer than two heading-delimited
// sections, so callers fall back to plain paragraph splitting for
// ordinary prose.
func splitOnMarkdownHeadings(content string) []string {
	src := []byte(content)
	doc := mdParser.Parser().Parse(text.NewReader(src))

	var sections []string
	var cur bytes.Buffer
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if _, ok := n.(*ast.Heading); ok && cur.Len() > 0 {
			sections = append(sections, cur.String())
			cur.Reset()
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			cur.Write(lines.At(i).Value(src))
		}
		cur.WriteByte('\n')
	}
	if cur.Len() > 0 {
		sections = append(sections, cur.String())
	}
	if len(sections) < 2 {
		return nil
	}
	return sections
}

// splitOversized recursively brings a single piece under maxSize using
// sentence boundaries, then falls back to a hard character split.
func (s *Splitter) splitOversized(piece string) []string {
	if len([]rune(piece)) <= s.maxSize {
		return []string{piece}
	}

	sentences := splitOnSentences(piece)
	if len(sentences) > 1 {
		out := make([]string, 0, len(sentences))
		for _, sent := range sentences {
			out = append(out, s.splitOversized(sent)...)
		}
		return mergeSmall(out, s.maxSize)
	}

	return hardCharSplit(piece, s.maxSize)
}

func splitOnBoundary(content, boundary string) []string {
	parts := strings.Split(content, boundary)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{content}
	}
	return out
}

func splitOnSentences(content string) []string {
	idxs := sentenceBoundary.FindAllStringIndex(content, -1)
	if len(idxs) == 0 {
		return []string{content}
	}

	var out []string
	start := 0
	for _, loc := range idxs {
		out = append(out, content[start:loc[1]])
		start = loc[1]
	}
	if start < len(content) {
		out = append(out, content[start:])
	}
	return out
}

// hardCharSplit is the last-resort split: a fixed-width character cut
// with no regard for word or sentence boundaries.
func hardCharSplit(content string, maxSize int) []string {
	r := []rune(content)
	var out []string
	for start := 0; start < len(r); start += maxSize {
		end := start + maxSize
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
	}
	return out
}

// mergeSmall greedily recombines adjacent small pieces up to maxSize, so
// the progressive split doesn't produce a flood of tiny fragments.
func mergeSmall(pieces []string, maxSize int) []string {
	if len(pieces) == 0 {
		return pieces
	}

	var out []string
	cur := pieces[0]
	for _, p := range pieces[1:] {
		candidate := cur + p
		if len([]rune(candidate)) <= maxSize {
			cur = candidate
			continue
		}
		out = append(out, cur)
		cur = p
	}
	out = append(out, cur)
	return out
}
