// Package chunker splits document text into bounded, overlapping chunks for
// embedding and retrieval.
package chunker

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators is the split priority: paragraph breaks first, then line
// breaks, sentence ends, words, and finally single characters.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is a bounded contiguous slice of document text, the unit of embedding
// and retrieval. Immutable once created.
type Chunk struct {
	Text     string
	Metadata map[string]string
	Index    int
}

// Splitter recursively splits text, trying the coarsest separator first and
// falling back to finer ones only where a piece still exceeds the chunk size.
// Adjacent chunks overlap by approximately the configured overlap.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a Splitter. Non-positive size or overlap fall back to defaults;
// overlap is clamped below the chunk size.
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split breaks text into overlapping pieces, each at most the chunk size
// unless a single unsplittable unit forces a larger one. Whitespace-only
// input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// SplitDocument splits text and wraps each piece as a Chunk carrying the
// document metadata and its position in the sequence.
func (s *Splitter) SplitDocument(text string, metadata map[string]string) []Chunk {
	pieces := s.Split(text)
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{Text: p, Metadata: metadata, Index: i}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the coarsest separator present in the text.
	sep := separators[len(separators)-1]
	var finer []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}

	splits := splitKeepingSeparator(text, sep)

	var chunks []string
	var pending []string
	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			// Unsplittable unit larger than the chunk size.
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, finer)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

// splitKeepingSeparator splits on sep, reattaching the separator to the front
// of the following piece so no characters are lost. An empty separator splits
// into single runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily packs pieces into chunks up to the chunk size, carrying
// trailing pieces of up to the overlap length into the next chunk.
func (s *Splitter) merge(splits []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range splits {
		l := len(piece)
		if total+l > s.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			// Drop leading pieces until what remains fits as overlap.
			for total > s.chunkOverlap || (total+l > s.chunkSize && total > 0) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}
