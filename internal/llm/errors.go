// Package llm wraps the completion API behind a tagged error model and a
// retrying call executor.
package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags a completion failure with how the pipeline must react.
// Classification happens once here at the client boundary; call sites
// switch on the kind instead of re-inspecting error text.
type ErrorKind string

const (
	// KindCancelled: the job was cancelled. Never retried, not an error
	// condition for the job.
	KindCancelled ErrorKind = "cancelled"
	// KindQuota: billing or quota exhaustion. Fatal, never retried.
	KindQuota ErrorKind = "quota_exceeded"
	// KindContentPolicy: the provider rejected the content. Handled as a
	// per-chunk skip by the analyzer.
	KindContentPolicy ErrorKind = "content_policy"
	// KindContextTooLong: the request exceeded the model context. Fatal.
	KindContextTooLong ErrorKind = "context_too_long"
	// KindTransient: network/timeout class, retried with backoff.
	KindTransient ErrorKind = "transient"
	// KindFatal: anything else. Propagates immediately.
	KindFatal ErrorKind = "fatal"
)

// CallError is the tagged failure returned by the client and executor.
type CallError struct {
	Kind ErrorKind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("llm call (%s): %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether the executor may retry this failure.
func (e *CallError) Retryable() bool { return e.Kind == KindTransient }

// KindOf extracts the kind from an error, or KindFatal if it is not a
// CallError.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindFatal
}

// Cancelled constructs the cancellation failure for a job.
func Cancelled(jobID string) *CallError {
	return &CallError{Kind: KindCancelled, Err: fmt.Errorf("job %s cancelled", jobID)}
}

// classify maps a raw provider error to a tagged CallError. Provider SDKs
// surface most failures as opaque text, so the mapping is substring based,
// but it runs only here.
func classify(err error) *CallError {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "quota", "billing", "insufficient_quota", "credit balance"):
		return &CallError{Kind: KindQuota, Err: err}
	case containsAny(msg, "content policy", "content_policy", "content filter", "flagged", "safety"):
		return &CallError{Kind: KindContentPolicy, Err: err}
	case containsAny(msg, "context length", "context_length", "maximum context", "too many tokens", "prompt is too long"):
		return &CallError{Kind: KindContextTooLong, Err: err}
	case containsAny(msg, "timeout", "deadline exceeded", "connection", "temporarily unavailable",
		"rate limit", "429", "502", "503", "529", "overloaded", "eof", "broken pipe", "reset by peer"):
		return &CallError{Kind: KindTransient, Err: err}
	}
	return &CallError{Kind: KindFatal, Err: err}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
