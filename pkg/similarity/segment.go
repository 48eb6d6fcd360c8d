package similarity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Segmenter splits text into the units that are embedded and matched.
type Segmenter interface {
	Segment(text string) ([]string, error)
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Tokenize returns the word tokens of text in order.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(text, -1)
}

// TokenSegmenter yields one unit per word token. Each unit carries up to
// Window neighbouring tokens on either side so the embedding reflects the
// token in context.
type TokenSegmenter struct {
	Window int
}

// Segment implements Segmenter.
func (s TokenSegmenter) Segment(text string) ([]string, error) {
	tokens := Tokenize(text)
	units := make([]string, len(tokens))
	for i := range tokens {
		lo := max(0, i-s.Window)
		hi := min(len(tokens), i+s.Window+1)
		units[i] = strings.Join(tokens[lo:hi], " ")
	}
	return units, nil
}

// ChunkSegmenter yields overlapping character chunks using a recursive
// character splitter.
type ChunkSegmenter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunkSegmenter creates a chunk segmenter.
func NewChunkSegmenter(size, overlap int) (*ChunkSegmenter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &ChunkSegmenter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}, nil
}

// Segment implements Segmenter.
func (s *ChunkSegmenter) Segment(text string) ([]string, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
