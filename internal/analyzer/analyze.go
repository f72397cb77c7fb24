package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/packlens/packlens/internal/config"
	"github.com/packlens/packlens/internal/db"
	"github.com/packlens/packlens/internal/llm"
	"github.com/packlens/packlens/internal/metrics"
	"github.com/packlens/packlens/internal/models"
	"github.com/packlens/packlens/internal/prompt"
	"github.com/packlens/packlens/internal/redact"
	"github.com/packlens/packlens/internal/source"
)

// notifyThreshold is the job size, in total chunks, above which the owner
// gets a completion email.
const notifyThreshold = 10

// totals accumulates the running token and cost counters for one job.
type totals struct {
	inputTokens  int
	outputTokens int
	cost         float64
}

// Analyze runs the per-chunk analysis loop for a prepared source. The
// source must be in ready_for_analysis; a source in a terminal state is
// never re-analyzed, which also guards credit reconciliation against
// replay. The job ID is the source ID.
//
// Each iteration checks the cancellation token, redacts and sends one
// chunk, appends the result to the source and pack blobs, and persists a
// durable progress checkpoint. Cancellation and affordability capping are
// normal exit paths; only unrecoverable errors produce the failed state.
func (s *Service) Analyze(ctx context.Context, user models.User, packID, sourceID, filename string, maxChunks int, customPrompt string) error {
	src, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}

	status := source.Status(src.Status)
	if status.IsTerminal() {
		return fmt.Errorf("source %s is %s; refusing to re-analyze", sourceID, status)
	}
	if !status.CanTransition(source.StatusAnalyzing) {
		return fmt.Errorf("source %s is %s; cannot start analysis", sourceID, status)
	}

	chunks, err := s.loadChunks(user.ID, packID, sourceID)
	if err != nil {
		s.fail(ctx, sourceID, 0, 0, totals{}, err.Error())
		return err
	}
	total := len(chunks)
	if total == 0 {
		s.fail(ctx, sourceID, 0, 0, totals{}, "no chunks to analyze")
		return fmt.Errorf("source %s has no chunks", sourceID)
	}

	aff, err := s.credits.CheckAffordability(ctx, user.ID)
	if err != nil {
		s.fail(ctx, sourceID, 0, total, totals{}, err.Error())
		return err
	}
	if !aff.CanProcess {
		s.fail(ctx, sourceID, 0, total, totals{}, ErrInsufficientCredits.Error())
		return fmt.Errorf("user %s: %w", user.ID, ErrInsufficientCredits)
	}

	// How many chunks this run may process: the full source, capped by
	// the caller's limit and by what the balance affords.
	limit := total
	if !aff.Unlimited && aff.ChunksAllowed < limit {
		limit = aff.ChunksAllowed
	}
	if maxChunks > 0 && maxChunks < limit {
		limit = maxChunks
	}

	// Template selection happens once per source, never per chunk.
	tmpl := prompt.Select(total, filename, chunks[0])
	systemPrompt := prompt.System(tmpl, customPrompt)

	if err := s.checkpoint(ctx, db.UpdateSourceParams{
		SourceID:    sourceID,
		Status:      string(source.StatusAnalyzing),
		TotalChunks: total,
	}); err != nil {
		return err
	}
	s.publish(sourceID, "analyzing",
		fmt.Sprintf("analyzing %d of %d chunks with %s", limit, total, tmpl), 0, 0, total)

	s.logger.Info("analysis started",
		"source_id", sourceID,
		"pack_id", packID,
		"user_id", user.ID,
		"template", string(tmpl),
		"total_chunks", total,
		"limit", limit)

	tok := s.registry.Token(sourceID)
	var sum totals

	for i := 0; i < limit; i++ {
		if tok.Requested() {
			return s.cancelled(ctx, user, packID, sourceID, i, total, sum)
		}

		req := llm.Request{
			System:       systemPrompt,
			User:         prompt.User(tmpl, redact.Mask(chunks[i]), i, total),
			Temperature:  s.cfg.Temperature,
			MaxOutTokens: s.cfg.MaxOutputTokens,
		}

		start := time.Now()
		resp, err := s.executor.Do(ctx, tok, sourceID, req)
		elapsed := time.Since(start)

		var result string
		switch {
		case err == nil:
			s.collector.RecordLLMUsage(metrics.OpLLMCall, elapsed,
				int64(resp.Usage.InputTokens), int64(resp.Usage.OutputTokens))
			sum.inputTokens += resp.Usage.InputTokens
			sum.outputTokens += resp.Usage.OutputTokens
			sum.cost += s.chunkCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)

			if prompt.IsRefusal(resp.Text) {
				s.logger.Warn("model refused chunk, recording placeholder",
					"source_id", sourceID, "chunk", i)
				result = prompt.RefusalPlaceholder(i)
			} else {
				result = resp.Text
			}

		case llm.KindOf(err) == llm.KindCancelled:
			return s.cancelled(ctx, user, packID, sourceID, i, total, sum)

		case llm.KindOf(err) == llm.KindContentPolicy:
			// Per-chunk skip: maximize partial value instead of
			// aborting the whole job.
			s.logger.Warn("content policy rejection, recording placeholder",
				"source_id", sourceID, "chunk", i, "error", err)
			result = prompt.RefusalPlaceholder(i)

		default:
			chunkErr := &ChunkError{Index: i, Recoverable: false, Err: err}
			s.fail(ctx, sourceID, i, total, sum, chunkErr.Error())
			s.sendNotification(user, sourceID, i, total, false)
			return chunkErr
		}

		if err := s.appendResult(user.ID, packID, sourceID, result); err != nil {
			chunkErr := &ChunkError{Index: i, Recoverable: false, Err: err}
			s.fail(ctx, sourceID, i, total, sum, chunkErr.Error())
			s.sendNotification(user, sourceID, i, total, false)
			return chunkErr
		}

		// Durability checkpoint: processed_chunks advances only after
		// the chunk's result is persisted.
		processed := i + 1
		percent := float64(processed) / float64(limit) * 100
		if err := s.checkpoint(ctx, db.UpdateSourceParams{
			SourceID:        sourceID,
			Status:          string(source.StatusAnalyzing),
			Progress:        percent,
			ProcessedChunks: processed,
			TotalChunks:     total,
			InputTokens:     sum.inputTokens,
			OutputTokens:    sum.outputTokens,
			Cost:            sum.cost,
		}); err != nil {
			return err
		}
		s.publish(sourceID, "analyzing",
			fmt.Sprintf("chunk %d of %d analyzed", processed, total),
			percent, processed, total)
	}

	// Normal completion, including the affordability-capped case: both
	// are the completed state, distinguished only by processed < total.
	if err := s.checkpoint(ctx, db.UpdateSourceParams{
		SourceID:        sourceID,
		Status:          string(source.StatusCompleted),
		Progress:        100,
		ProcessedChunks: limit,
		TotalChunks:     total,
		InputTokens:     sum.inputTokens,
		OutputTokens:    sum.outputTokens,
		Cost:            sum.cost,
	}); err != nil {
		return err
	}
	s.publish(sourceID, "completed",
		fmt.Sprintf("analysis complete: %d of %d chunks", limit, total),
		100, limit, total)

	if err := s.credits.Reconcile(ctx, user, sourceID, limit, aff); err != nil {
		// Billing failure after completed work is surfaced but does not
		// rewind the terminal state.
		s.logger.Error("credit reconciliation failed",
			"source_id", sourceID, "user_id", user.ID, "error", err)
	}
	s.sendNotification(user, sourceID, limit, total, true)

	s.logger.Info("analysis completed",
		"source_id", sourceID,
		"processed_chunks", limit,
		"total_chunks", total,
		"input_tokens", sum.inputTokens,
		"output_tokens", sum.outputTokens,
		"cost", sum.cost)
	return nil
}

// cancelled is the normal early-exit path: persist the cancelled state
// with the chunks already processed, consume the one-shot flag, settle
// billing for the partial work, and notify.
func (s *Service) cancelled(ctx context.Context, user models.User, packID, sourceID string, processed, total int, sum totals) error {
	percent := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}

	if err := s.checkpoint(ctx, db.UpdateSourceParams{
		SourceID:        sourceID,
		Status:          string(source.StatusCancelled),
		Progress:        percent,
		ProcessedChunks: processed,
		TotalChunks:     total,
		InputTokens:     sum.inputTokens,
		OutputTokens:    sum.outputTokens,
		Cost:            sum.cost,
	}); err != nil {
		return err
	}
	s.registry.Clear(sourceID)
	s.publish(sourceID, "cancelled",
		fmt.Sprintf("cancelled after %d of %d chunks", processed, total),
		percent, processed, total)

	aff, err := s.credits.CheckAffordability(ctx, user.ID)
	if err != nil {
		s.logger.Error("affordability lookup failed during cancellation",
			"source_id", sourceID, "error", err)
	} else if err := s.credits.Reconcile(ctx, user, sourceID, processed, aff); err != nil {
		s.logger.Error("credit reconciliation failed",
			"source_id", sourceID, "user_id", user.ID, "error", err)
	}
	s.sendNotification(user, sourceID, processed, total, false)

	s.logger.Info("analysis cancelled",
		"source_id", sourceID, "processed_chunks", processed, "total_chunks", total)
	return nil
}

// fail transitions the source to failed with the error message attached.
// No credit reconciliation happens on this path.
func (s *Service) fail(ctx context.Context, sourceID string, processed, total int, sum totals, msg string) {
	percent := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}

	if err := s.checkpoint(ctx, db.UpdateSourceParams{
		SourceID:        sourceID,
		Status:          string(source.StatusFailed),
		Progress:        percent,
		ProcessedChunks: processed,
		TotalChunks:     total,
		InputTokens:     sum.inputTokens,
		OutputTokens:    sum.outputTokens,
		Cost:            sum.cost,
		ErrorMessage:    msg,
	}); err != nil {
		s.logger.Error("failed to persist failure state",
			"source_id", sourceID, "error", err)
	}
	s.publish(sourceID, "failed", msg, percent, processed, total)
}

// chunkCost derives the informational dollar cost of one chunk's usage.
func (s *Service) chunkCost(inputTokens, outputTokens int) float64 {
	price := config.PriceFor(s.cfg.Prices, s.cfg.Model)
	return float64(inputTokens)*price.InputPerToken + float64(outputTokens)*price.OutputPerToken
}

// appendResult appends one chunk's analysis to the source's accumulated
// text and the pack's combined text. Both are read-modify-write of the
// whole blob; the single-writer-per-source invariant keeps this safe.
func (s *Service) appendResult(userID, packID, sourceID, result string) error {
	entry := fmt.Sprintf("\n\n---\n\n%s", result)

	if err := s.append(analysisKey(userID, packID, sourceID), entry); err != nil {
		return fmt.Errorf("append source analysis: %w", err)
	}
	if err := s.append(combinedKey(userID, packID), entry); err != nil {
		return fmt.Errorf("append pack analysis: %w", err)
	}
	return nil
}

// append reads the blob at key (missing treated as empty), concatenates
// text, and writes the whole blob back.
func (s *Service) append(key, text string) error {
	existing, err := s.get(key)
	if err != nil && !isNotFound(err) {
		return err
	}
	return s.put(key, append(existing, []byte(text)...))
}

// checkpoint persists a source status update and records the timing.
func (s *Service) checkpoint(ctx context.Context, p db.UpdateSourceParams) error {
	start := time.Now()
	err := s.sources.UpdateSourceStatus(ctx, p)
	s.collector.RecordTiming(metrics.OpDBUpdate, time.Since(start))
	if err != nil {
		return fmt.Errorf("persist status %s for %s: %w", p.Status, p.SourceID, err)
	}
	return nil
}

// sendNotification fires the completion email for large jobs without
// blocking the pipeline. Failures are logged, never escalated.
func (s *Service) sendNotification(user models.User, jobID string, processed, total int, success bool) {
	if total < notifyThreshold || user.Email == "" {
		return
	}
	go func() {
		if err := s.notifier.Notify(user.Email, jobID, processed, total, success); err != nil {
			s.logger.Warn("notification failed",
				"job_id", jobID, "email", user.Email, "error", err)
		}
	}()
}
