package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/packlens/packlens/internal/jobs"
)

// Executor drives a Completer with bounded retries, linear backoff and
// cooperative cancellation checks.
type Executor struct {
	completer  Completer
	maxRetries int
	logger     *slog.Logger

	// sleep is swapped out by tests; production uses time.Sleep.
	sleep func(time.Duration)
}

// backoffPollInterval is how often the backoff wait re-checks the
// cancellation token so a cancel request is honored mid-wait.
const backoffPollInterval = time.Second

// NewExecutor creates an executor around a completion client.
func NewExecutor(completer Completer, maxRetries int, logger *slog.Logger) *Executor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		completer:  completer,
		maxRetries: maxRetries,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Do issues the request, retrying transient failures up to the configured
// attempt budget with a linear backoff of attempt*2 seconds. The
// cancellation token is checked before every attempt and once per second
// during backoff. Fatal kinds (quota, content policy, context length)
// surface immediately without a retry.
func (e *Executor) Do(ctx context.Context, token jobs.Token, jobID string, req Request) (*Completion, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if token.Requested() {
			return nil, Cancelled(jobID)
		}
		if err := ctx.Err(); err != nil {
			return nil, Cancelled(jobID)
		}

		resp, err := e.completer.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		kind := KindOf(err)
		if kind != KindTransient {
			return nil, err
		}

		e.logger.Warn("transient llm failure",
			"job_id", jobID,
			"attempt", attempt,
			"max_retries", e.maxRetries,
			"error", err)

		if attempt == e.maxRetries {
			break
		}
		if err := e.wait(ctx, token, time.Duration(attempt)*2*time.Second); err != nil {
			return nil, Cancelled(jobID)
		}
	}

	return nil, &CallError{
		Kind: KindTransient,
		Err:  fmt.Errorf("exhausted %d attempts: %w", e.maxRetries, lastErr),
	}
}

// wait sleeps for d in one-second slices, returning early with an error if
// cancellation is requested or the context ends.
func (e *Executor) wait(ctx context.Context, token jobs.Token, d time.Duration) error {
	for remaining := d; remaining > 0; remaining -= backoffPollInterval {
		if token.Requested() {
			return context.Canceled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		slice := backoffPollInterval
		if remaining < slice {
			slice = remaining
		}
		e.sleep(slice)
	}
	if token.Requested() {
		return context.Canceled
	}
	return nil
}
