package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want ErrorKind
	}{
		{"quota", "openai: insufficient_quota: you exceeded your current quota", KindQuota},
		{"billing", "billing hard limit has been reached", KindQuota},
		{"anthropic balance", "your credit balance is too low", KindQuota},
		{"content policy", "the response was flagged by our content policy", KindContentPolicy},
		{"content filter", "content filter triggered", KindContentPolicy},
		{"context length", "this model's maximum context length is 8192 tokens", KindContextTooLong},
		{"prompt too long", "prompt is too long: 250000 tokens", KindContextTooLong},
		{"timeout", "request timeout after 30s", KindTransient},
		{"deadline", "context deadline exceeded", KindTransient},
		{"rate limit", "429 too many requests", KindTransient},
		{"bad gateway", "unexpected status 502", KindTransient},
		{"overloaded", "529: overloaded_error", KindTransient},
		{"connection reset", "read tcp: connection reset by peer", KindTransient},
		{"unknown", "model produced invalid output", KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := classify(errors.New(tt.msg))
			if ce.Kind != tt.want {
				t.Errorf("classify(%q).Kind = %s, want %s", tt.msg, ce.Kind, tt.want)
			}
		})
	}
}

func TestCallError_Retryable(t *testing.T) {
	for kind, want := range map[ErrorKind]bool{
		KindTransient:      true,
		KindQuota:          false,
		KindContentPolicy:  false,
		KindContextTooLong: false,
		KindCancelled:      false,
		KindFatal:          false,
	} {
		ce := &CallError{Kind: kind, Err: errors.New("x")}
		if got := ce.Retryable(); got != want {
			t.Errorf("Retryable(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestKindOf(t *testing.T) {
	ce := &CallError{Kind: KindQuota, Err: errors.New("quota")}

	if got := KindOf(ce); got != KindQuota {
		t.Errorf("KindOf(CallError) = %s", got)
	}

	// Wrapped CallErrors still classify.
	wrapped := fmt.Errorf("attempt failed: %w", ce)
	if got := KindOf(wrapped); got != KindQuota {
		t.Errorf("KindOf(wrapped) = %s", got)
	}

	if got := KindOf(errors.New("plain")); got != KindFatal {
		t.Errorf("KindOf(plain) = %s, want fatal", got)
	}
}

func TestCancelled(t *testing.T) {
	err := Cancelled("job-9")
	if err.Kind != KindCancelled {
		t.Errorf("Kind = %s", err.Kind)
	}
	if KindOf(err) != KindCancelled {
		t.Error("Cancelled error not recognized by KindOf")
	}
}
