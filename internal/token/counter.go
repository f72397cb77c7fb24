// Package token provides token counting for chunk sizing.
package token

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	defaultEncoder *tiktoken.Tiktoken
	encoderOnce    sync.Once
	encoderErr     error
)

// getEncoder returns the shared tiktoken encoder, initializing it lazily.
// cl100k_base is the GPT-4 encoding and a close enough approximation for
// the other modern model families we target.
func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		defaultEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return defaultEncoder, encoderErr
}

// Count returns the token count of text under the cl100k_base encoding.
//
// Counting is advisory for chunk sizing, not safety-critical: if the
// encoder cannot be initialized the count degrades to a len/4 character
// heuristic rather than returning an error.
func Count(text string) int {
	if text == "" {
		return 0
	}

	enc, err := getEncoder()
	if err != nil {
		estimate := len(text) / 4
		if estimate < 1 {
			estimate = 1
		}
		return estimate
	}

	// Allow all special tokens so inputs containing sequences like
	// "<|endoftext|>" are counted instead of panicking.
	tokens := enc.Encode(text, []string{"all"}, nil)
	return len(tokens)
}

// Counter is the counting function used by the chunker. Tests substitute
// deterministic counters here.
type Counter func(text string) int
