package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/packlens/packlens/internal/chunker"
	"github.com/packlens/packlens/internal/db"
	"github.com/packlens/packlens/internal/metrics"
	"github.com/packlens/packlens/internal/models"
	"github.com/packlens/packlens/internal/source"
)

// chunkSet is the persisted chunk sequence for a source. Chunks are
// immutable once written.
type chunkSet struct {
	Chunks []string `json:"chunks"`
	Count  int      `json:"count"`
}

// ExtractAndChunk normalizes raw export text, splits it into token-bounded
// chunks, persists the ordered sequence, and moves the source to
// ready_for_analysis. Returns the chunk count.
func (s *Service) ExtractAndChunk(ctx context.Context, user models.User, packID, sourceID, rawText, filename string) (int, error) {
	src, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}

	status := source.Status(src.Status)
	if status.IsTerminal() {
		return 0, fmt.Errorf("source %s is %s; refusing to re-extract", sourceID, status)
	}
	if !status.CanTransition(source.StatusExtracting) {
		return 0, fmt.Errorf("source %s is %s; cannot start extraction", sourceID, status)
	}

	if err := s.checkpoint(ctx, db.UpdateSourceParams{
		SourceID: sourceID,
		Status:   string(source.StatusExtracting),
	}); err != nil {
		return 0, err
	}
	s.publish(sourceID, "extracting", "normalizing and chunking input", 0, 0, 0)

	text := normalize(rawText)
	if text == "" {
		msg := "extracted text is empty"
		s.fail(ctx, sourceID, 0, 0, totals{}, msg)
		return 0, fmt.Errorf("source %s: %s", sourceID, msg)
	}

	cfg := chunker.Config{
		MaxTokens:     s.cfg.MaxTokensPerChunk,
		InitialWindow: s.cfg.InitialCharWindow,
		Overlap:       s.cfg.OverlapChars,
		MinChunkChars: s.cfg.MinChunkChars,
	}

	start := time.Now()
	chunks := chunker.Split(text, cfg, s.counter)
	s.collector.RecordTiming(metrics.OpChunking, time.Since(start))

	set := chunkSet{Chunks: chunks, Count: len(chunks)}
	data, err := json.Marshal(set)
	if err != nil {
		return 0, fmt.Errorf("encode chunks: %w", err)
	}
	if err := s.put(chunksKey(user.ID, packID, sourceID), data); err != nil {
		msg := fmt.Sprintf("persist chunks: %v", err)
		s.fail(ctx, sourceID, 0, len(chunks), totals{}, msg)
		return 0, fmt.Errorf("source %s: %s", sourceID, msg)
	}

	if err := s.checkpoint(ctx, db.UpdateSourceParams{
		SourceID:    sourceID,
		Status:      string(source.StatusReadyForAnalysis),
		TotalChunks: len(chunks),
	}); err != nil {
		return 0, err
	}
	s.publish(sourceID, "chunked",
		fmt.Sprintf("split into %d chunks", len(chunks)), 0, 0, len(chunks))

	s.logger.Info("source chunked",
		"source_id", sourceID,
		"pack_id", packID,
		"filename", filename,
		"chunks", len(chunks),
		"chars", len(text))
	return len(chunks), nil
}

// normalize collapses line endings and trims surrounding whitespace.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// loadChunks reads a source's persisted chunk sequence.
func (s *Service) loadChunks(userID, packID, sourceID string) ([]string, error) {
	data, err := s.get(chunksKey(userID, packID, sourceID))
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	var set chunkSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	return set.Chunks, nil
}
