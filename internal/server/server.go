// Package server exposes the analysis pipeline over HTTP: job submission,
// cancellation, and progress by polling or streaming. This is the minimal
// progress contract, not a general routing layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/packlens/packlens/internal/analyzer"
	"github.com/packlens/packlens/internal/db"
	"github.com/packlens/packlens/internal/models"
)

// SourceAdmin is the slice of the metadata service the HTTP layer needs
// beyond the pipeline itself.
type SourceAdmin interface {
	CreatePack(ctx context.Context, packID, userID, name string) error
	CreateSource(ctx context.Context, sourceID, userID, packID, filename string) error
	GetSource(ctx context.Context, sourceID string) (*models.Source, error)
	ListSourcesByPack(ctx context.Context, packID string) ([]models.Source, error)
	ListActiveSources(ctx context.Context, cutoff time.Time) ([]models.Source, error)
}

// CreditAdmin is the ledger surface exposed over HTTP.
type CreditAdmin interface {
	GetPaymentStatus(ctx context.Context, userID string) (models.PaymentStatus, error)
	AddCredits(ctx context.Context, userID string, delta int, txType, description string) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

// Server wires the pipeline behind an HTTP listener.
type Server struct {
	pipeline *analyzer.Service
	sources  SourceAdmin
	ledger   CreditAdmin
	logger   *slog.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates the server for addr.
func New(addr string, pipeline *analyzer.Service, sources SourceAdmin, ledger CreditAdmin, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: pipeline,
		sources:  sources,
		ledger:   ledger,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Auth happens upstream; origin is not the boundary here.
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/packs", s.handleCreatePack)
	mux.HandleFunc("POST /api/packs/{pack}/sources", s.handleAddSource)
	mux.HandleFunc("GET /api/packs/{pack}/sources", s.handleListSources)
	mux.HandleFunc("POST /api/packs/{pack}/sources/{source}/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/users/{user}/credits", s.handleCredits)
	mux.HandleFunc("POST /api/users/{user}/credits", s.handleAddCredits)
	mux.HandleFunc("GET /api/jobs/{id}/progress", s.handleProgress)
	mux.HandleFunc("GET /api/jobs/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/jobs/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type addSourceRequest struct {
	SourceID string `json:"source_id"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type addSourceResponse struct {
	SourceID   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	packID := r.PathValue("pack")

	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.UserID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id and content are required"))
		return
	}
	if req.SourceID == "" {
		req.SourceID = uuid.New().String()[:8]
	}

	if err := s.sources.CreateSource(r.Context(), req.SourceID, req.UserID, packID, req.Filename); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	user := models.User{ID: req.UserID, Email: req.Email}
	count, err := s.pipeline.ExtractAndChunk(r.Context(), user, packID, req.SourceID, req.Content, req.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, addSourceResponse{SourceID: req.SourceID, ChunkCount: count})
}

type analyzeRequest struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Filename     string `json:"filename"`
	MaxChunks    int    `json:"max_chunks"`
	CustomPrompt string `json:"custom_prompt"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	packID := r.PathValue("pack")
	sourceID := r.PathValue("source")

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}

	user := models.User{ID: req.UserID, Email: req.Email}

	// The analysis loop can run for hours; it gets its own context so the
	// HTTP request ending does not tear it down.
	go func() {
		if err := s.pipeline.Analyze(context.Background(), user, packID, sourceID,
			req.Filename, req.MaxChunks, req.CustomPrompt); err != nil {
			s.logger.Error("analysis failed",
				"source_id", sourceID, "pack_id", packID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": sourceID, "status": "accepted"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	s.pipeline.Cancel(jobID)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "cancellation_requested"})
}

// activeJobWindow bounds how far back the durable fallback looks when
// listing jobs that predate the in-memory tracker (e.g. after a restart).
const activeJobWindow = 24 * time.Hour

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	type jobView struct {
		JobID  string `json:"job_id"`
		Status string `json:"status,omitempty"`
		Latest any    `json:"latest,omitempty"`
	}

	ids := s.pipeline.Jobs()
	seen := make(map[string]bool, len(ids))
	out := make([]jobView, 0, len(ids))
	for _, id := range ids {
		seen[id] = true
		view := jobView{JobID: id}
		if ev, ok := s.pipeline.Progress(id); ok {
			view.Latest = ev
		}
		out = append(out, view)
	}

	// Merge in recently active sources the tracker has no memory of.
	recent, err := s.sources.ListActiveSources(r.Context(), time.Now().Add(-activeJobWindow))
	if err != nil {
		s.logger.Warn("listing active sources failed", "error", err)
	}
	for _, src := range recent {
		id, err := models.RecordIDString(src.ID)
		if err != nil || seen[id] {
			continue
		}
		out = append(out, jobView{JobID: id, Status: src.Status})
	}

	writeJSON(w, http.StatusOK, out)
}

type createPackRequest struct {
	PackID string `json:"pack_id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

func (s *Server) handleCreatePack(w http.ResponseWriter, r *http.Request) {
	var req createPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}
	if req.PackID == "" {
		req.PackID = uuid.New().String()[:8]
	}
	if req.Name == "" {
		req.Name = req.PackID
	}

	if err := s.sources.CreatePack(r.Context(), req.PackID, req.UserID, req.Name); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"pack_id": req.PackID})
}

// sourceView is the listing shape for one source.
type sourceView struct {
	SourceID        string  `json:"source_id"`
	Filename        string  `json:"filename,omitempty"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	ProcessedChunks int     `json:"processed_chunks"`
	TotalChunks     int     `json:"total_chunks"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	packID := r.PathValue("pack")

	list, err := s.sources.ListSourcesByPack(r.Context(), packID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]sourceView, 0, len(list))
	for _, src := range list {
		id, err := models.RecordIDString(src.ID)
		if err != nil {
			s.logger.Warn("skipping source with non-string ID", "error", err)
			continue
		}
		out = append(out, sourceView{
			SourceID:        id,
			Filename:        src.Filename,
			Status:          src.Status,
			Progress:        src.Progress,
			ProcessedChunks: src.ProcessedChunks,
			TotalChunks:     src.TotalChunks,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	status, err := s.ledger.GetPaymentStatus(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type txView struct {
		Type        string    `json:"type"`
		Credits     int       `json:"credits"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}
	views := make([]txView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, txView{
			Type:        tx.Type,
			Credits:     tx.Credits,
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan":         status.Plan,
		"balance":      status.Balance,
		"transactions": views,
	})
}

type addCreditsRequest struct {
	Credits     int    `json:"credits"`
	Description string `json:"description"`
}

func (s *Server) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req addCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Credits <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("credits must be positive"))
		return
	}
	if req.Description == "" {
		req.Description = "credit purchase"
	}

	if err := s.ledger.AddCredits(r.Context(), userID, req.Credits, models.TxPurchase, req.Description); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status, err := s.ledger.GetPaymentStatus(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": status.Plan, "balance": status.Balance})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	ev, ok := s.pipeline.Progress(jobID)
	if !ok {
		// Fall back to the durable source record for jobs with no
		// retained in-memory history (e.g. after a restart).
		src, err := s.sources.GetSource(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("no progress for job %s", jobID))
			return
		}
		writeJSON(w, http.StatusOK, sourceView{
			SourceID:        jobID,
			Filename:        src.Filename,
			Status:          src.Status,
			Progress:        src.Progress,
			ProcessedChunks: src.ProcessedChunks,
			TotalChunks:     src.TotalChunks,
		})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since timestamp: %w", err))
			return
		}
		since = parsed
	}

	writeJSON(w, http.StatusOK, s.pipeline.ProgressHistory(jobID, since))
}

// streamPingInterval paces the keepalive ping on an idle stream.
const streamPingInterval = 30 * time.Second

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.pipeline.Subscribe(jobID)
	defer cancel()

	// Replay retained history first so a late subscriber sees context.
	for _, ev := range s.pipeline.ProgressHistory(jobID, time.Time{}) {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
