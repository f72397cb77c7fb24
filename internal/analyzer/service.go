// Package analyzer drives the chunked analysis pipeline: chunking sources,
// per-chunk model calls with retry and cancellation, incremental
// persistence, and credit reconciliation.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/packlens/packlens/internal/blob"
	"github.com/packlens/packlens/internal/config"
	"github.com/packlens/packlens/internal/credits"
	"github.com/packlens/packlens/internal/db"
	"github.com/packlens/packlens/internal/jobs"
	"github.com/packlens/packlens/internal/llm"
	"github.com/packlens/packlens/internal/metrics"
	"github.com/packlens/packlens/internal/models"
	"github.com/packlens/packlens/internal/notify"
	"github.com/packlens/packlens/internal/progress"
	"github.com/packlens/packlens/internal/token"
)

// SourceStore is the slice of the metadata service the pipeline consumes.
// Implemented by *db.Client; tests use fakes.
type SourceStore interface {
	GetSource(ctx context.Context, sourceID string) (*models.Source, error)
	UpdateSourceStatus(ctx context.Context, p db.UpdateSourceParams) error
}

// ErrInsufficientCredits is returned when a user's balance affords no
// chunks at all.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ChunkError wraps a chunk index with the failure that skipped or stopped
// it, for structured reporting.
type ChunkError struct {
	Index       int
	Recoverable bool
	Err         error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Config holds the pipeline's tunables.
type Config struct {
	Model             string
	MaxTokensPerChunk int
	InitialCharWindow int
	OverlapChars      int
	MinChunkChars     int
	MaxRetries        int
	Temperature       float64
	MaxOutputTokens   int
	Prices            map[string]config.ModelPrice
}

// Service is the chunked analysis pipeline. One service instance serves
// all jobs; per-job state lives in the registry, tracker and store.
type Service struct {
	store     blob.Store
	sources   SourceStore
	executor  *llm.Executor
	registry  *jobs.Registry
	tracker   *progress.Tracker
	credits   *credits.Reconciler
	notifier  notify.Notifier
	collector *metrics.Collector
	counter   token.Counter
	cfg       Config
	logger    *slog.Logger
}

// NewService wires the pipeline. collector and notifier may be nil.
func NewService(
	store blob.Store,
	sources SourceStore,
	completer llm.Completer,
	registry *jobs.Registry,
	tracker *progress.Tracker,
	reconciler *credits.Reconciler,
	notifier notify.Notifier,
	collector *metrics.Collector,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: logger}
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Service{
		store:     store,
		sources:   sources,
		executor:  llm.NewExecutor(completer, cfg.MaxRetries, logger),
		registry:  registry,
		tracker:   tracker,
		credits:   reconciler,
		notifier:  notifier,
		collector: collector,
		counter:   token.Count,
		cfg:       cfg,
		logger:    logger,
	}
}

// Blob key artifacts under {user}/{pack}/{source}/.
const (
	artifactChunks   = "chunks.json"
	artifactAnalysis = "analysis.md"
	artifactCombined = "combined.md"
)

func chunksKey(userID, packID, sourceID string) string {
	return blob.Key(userID, packID, sourceID, artifactChunks)
}

func analysisKey(userID, packID, sourceID string) string {
	return blob.Key(userID, packID, sourceID, artifactAnalysis)
}

func combinedKey(userID, packID string) string {
	return blob.Key(userID, packID, artifactCombined)
}

// Cancel flags a job for cancellation. The flag takes effect at the next
// checkpoint in the analysis loop; the acknowledgement is asynchronous.
func (s *Service) Cancel(jobID string) {
	s.registry.RequestCancel(jobID)
	s.logger.Info("cancellation requested", "job_id", jobID)
}

// Progress returns the latest progress event for a job.
func (s *Service) Progress(jobID string) (progress.Event, bool) {
	return s.tracker.Latest(jobID)
}

// ProgressHistory returns a job's retained events strictly after since.
func (s *Service) ProgressHistory(jobID string, since time.Time) []progress.Event {
	return s.tracker.History(jobID, since)
}

// Subscribe streams a job's future progress events.
func (s *Service) Subscribe(jobID string) (<-chan progress.Event, func()) {
	return s.tracker.Subscribe(jobID)
}

// Jobs lists job IDs with retained progress.
func (s *Service) Jobs() []string {
	return s.tracker.Jobs()
}

// Stats returns the pipeline's runtime metrics snapshot.
func (s *Service) Stats() metrics.Snapshot {
	return s.collector.Snapshot()
}

// get reads a blob and records the timing.
func (s *Service) get(key string) ([]byte, error) {
	start := time.Now()
	data, err := s.store.Get(key)
	s.collector.RecordTiming(metrics.OpBlobGet, time.Since(start))
	return data, err
}

// put writes a blob and records the timing.
func (s *Service) put(key string, data []byte) error {
	start := time.Now()
	err := s.store.Put(key, data)
	s.collector.RecordTiming(metrics.OpBlobPut, time.Since(start))
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, blob.ErrNotFound)
}

// publish appends a progress event for a job.
func (s *Service) publish(jobID, step, message string, percent float64, current, total int) {
	s.tracker.Publish(jobID, progress.Event{
		Step:         step,
		Percent:      percent,
		Message:      message,
		CurrentChunk: current,
		TotalChunks:  total,
	})
}
