// Package chunker splits extracted source text into token-bounded chunks.
package chunker

import (
	"github.com/packlens/packlens/internal/token"
)

// Config defines chunking parameters.
type Config struct {
	// MaxTokens is the soft token budget per chunk.
	MaxTokens int
	// InitialWindow is the candidate window in characters, a generous
	// over-estimate at roughly 4 chars/token.
	InitialWindow int
	// Overlap is the character overlap carried into the next chunk for
	// model context. Overlap text is not billed twice.
	Overlap int
	// MinChunkChars is the absolute floor for a shrunk window. Guarantees
	// forward progress on pathologically dense text (tables of numbers).
	MinChunkChars int
}

// DefaultConfig returns sensible defaults for an 8k-context model.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     6000,
		InitialWindow: 24000,
		Overlap:       400,
		MinChunkChars: 1000,
	}
}

// shrinkMargin is the safety factor applied when a window over-shoots the
// token budget and has to be resized from its observed density.
const shrinkMargin = 0.9

// Split chunks text into an ordered sequence bounded by cfg.MaxTokens.
//
// The cursor always advances by at least a quarter of the initial window,
// so the loop terminates in O(len/MinChunkChars) steps regardless of how
// the shrink estimate behaves. Consecutive chunks share an overlap region;
// concatenating the non-overlap spans reconstructs the input exactly.
func Split(text string, cfg Config, count token.Counter) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	// Short input: single chunk, no splitting.
	if len(runes) <= cfg.InitialWindow {
		return []string{text}
	}

	minAdvance := cfg.InitialWindow / 4
	if minAdvance < 1 {
		minAdvance = 1
	}

	var chunks []string
	cursor := 0
	for cursor < len(runes) {
		size := cfg.InitialWindow
		if cursor+size > len(runes) {
			size = len(runes) - cursor
		}

		window := runes[cursor : cursor+size]
		tokens := count(string(window))

		if tokens > cfg.MaxTokens {
			// Resize from the window's own observed density with a
			// safety margin, floored so dense text still advances.
			density := float64(size) / float64(tokens)
			shrunk := int(float64(cfg.MaxTokens) * density * shrinkMargin)
			if shrunk < cfg.MinChunkChars {
				shrunk = cfg.MinChunkChars
			}
			if shrunk < size {
				size = shrunk
				window = runes[cursor : cursor+size]
			}
		}

		chunks = append(chunks, string(window))

		// Advance at least minAdvance for termination, but never past the
		// window end: a heavily shrunk window drops its overlap instead of
		// skipping input.
		advance := size - cfg.Overlap
		if advance < minAdvance {
			advance = minAdvance
		}
		if advance > size {
			advance = size
		}
		cursor += advance
	}

	return chunks
}

// PrimarySpans returns the non-overlapping prefix of each chunk, i.e. the
// bytes each chunk contributes beyond the overlap it shares with its
// successor. Joining the result reconstructs the original text.
func PrimarySpans(chunks []string, cfg Config) []string {
	if len(chunks) == 0 {
		return nil
	}

	minAdvance := cfg.InitialWindow / 4
	if minAdvance < 1 {
		minAdvance = 1
	}

	spans := make([]string, len(chunks))
	for i, c := range chunks {
		if i == len(chunks)-1 {
			spans[i] = c
			continue
		}
		// Mirrors the advance computation in Split.
		runes := []rune(c)
		advance := len(runes) - cfg.Overlap
		if advance < minAdvance {
			advance = minAdvance
		}
		if advance > len(runes) {
			advance = len(runes)
		}
		spans[i] = string(runes[:advance])
	}
	return spans
}
