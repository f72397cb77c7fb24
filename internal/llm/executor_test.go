package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/packlens/packlens/internal/jobs"
)

// scriptedCompleter returns its scripted results in order, then repeats
// the last one.
type scriptedCompleter struct {
	results []error
	calls   int
}

func (c *scriptedCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	idx := c.calls
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	}
	c.calls++

	if err := c.results[idx]; err != nil {
		return nil, err
	}
	return &Completion{Text: "ok", Usage: Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func newTestExecutor(c Completer, maxRetries int) (*Executor, *[]time.Duration) {
	e := NewExecutor(c, maxRetries, nil)
	var sleeps []time.Duration
	e.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return e, &sleeps
}

func transientErr() error {
	return &CallError{Kind: KindTransient, Err: errors.New("503 service unavailable")}
}

func TestExecutor_SuccessFirstAttempt(t *testing.T) {
	c := &scriptedCompleter{results: []error{nil}}
	e, sleeps := newTestExecutor(c, 3)

	resp, err := e.Do(context.Background(), jobs.Token{}, "job", Request{User: "hi"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q", resp.Text)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept %v on a clean first attempt", *sleeps)
	}
}

func TestExecutor_RetriesTransientWithLinearBackoff(t *testing.T) {
	c := &scriptedCompleter{results: []error{transientErr(), transientErr(), nil}}
	e, sleeps := newTestExecutor(c, 3)

	resp, err := e.Do(context.Background(), jobs.Token{}, "job", Request{User: "hi"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp == nil || c.calls != 3 {
		t.Fatalf("calls = %d, want 3", c.calls)
	}

	// Backoffs are attempt*2 seconds, slept in one-second slices.
	var total time.Duration
	for _, d := range *sleeps {
		total += d
	}
	want := 2*time.Second + 4*time.Second
	if total != want {
		t.Errorf("total backoff = %v, want %v", total, want)
	}
}

func TestExecutor_ExhaustsRetries(t *testing.T) {
	c := &scriptedCompleter{results: []error{transientErr()}}
	e, _ := newTestExecutor(c, 3)

	_, err := e.Do(context.Background(), jobs.Token{}, "job", Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if c.calls != 3 {
		t.Errorf("calls = %d, want 3", c.calls)
	}
	if KindOf(err) != KindTransient {
		t.Errorf("exhaustion kind = %s, want transient", KindOf(err))
	}
}

func TestExecutor_FatalKindsSurfaceImmediately(t *testing.T) {
	for _, kind := range []ErrorKind{KindQuota, KindContentPolicy, KindContextTooLong, KindFatal} {
		t.Run(string(kind), func(t *testing.T) {
			c := &scriptedCompleter{results: []error{&CallError{Kind: kind, Err: errors.New("boom")}}}
			e, sleeps := newTestExecutor(c, 3)

			_, err := e.Do(context.Background(), jobs.Token{}, "job", Request{User: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if c.calls != 1 {
				t.Errorf("calls = %d, want 1 (no retry of %s)", c.calls, kind)
			}
			if len(*sleeps) != 0 {
				t.Errorf("backoff slept for a non-retryable failure")
			}
			if KindOf(err) != kind {
				t.Errorf("kind = %s, want %s", KindOf(err), kind)
			}
		})
	}
}

func TestExecutor_CancelledBeforeAttempt(t *testing.T) {
	registry := jobs.NewRegistry()
	registry.RequestCancel("job")

	c := &scriptedCompleter{results: []error{nil}}
	e, _ := newTestExecutor(c, 3)

	_, err := e.Do(context.Background(), registry.Token("job"), "job", Request{User: "hi"})
	if KindOf(err) != KindCancelled {
		t.Fatalf("error = %v, want cancelled", err)
	}
	if c.calls != 0 {
		t.Errorf("completer called %d times after cancellation", c.calls)
	}
}

func TestExecutor_CancelledDuringBackoff(t *testing.T) {
	registry := jobs.NewRegistry()
	c := &scriptedCompleter{results: []error{transientErr()}}

	e := NewExecutor(c, 3, nil)
	e.sleep = func(time.Duration) {
		// Cancellation arrives mid-wait; the next slice check must see it.
		registry.RequestCancel("job")
	}

	_, err := e.Do(context.Background(), registry.Token("job"), "job", Request{User: "hi"})
	if KindOf(err) != KindCancelled {
		t.Fatalf("error = %v, want cancelled", err)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1 (no attempt after mid-backoff cancel)", c.calls)
	}
}

func TestExecutor_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &scriptedCompleter{results: []error{nil}}
	e, _ := newTestExecutor(c, 3)

	_, err := e.Do(ctx, jobs.Token{}, "job", Request{User: "hi"})
	if KindOf(err) != KindCancelled {
		t.Fatalf("error = %v, want cancelled", err)
	}
	if c.calls != 0 {
		t.Errorf("completer called with a dead context")
	}
}
