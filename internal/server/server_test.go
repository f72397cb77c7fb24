package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/packlens/packlens/internal/analyzer"
	"github.com/packlens/packlens/internal/blob"
	"github.com/packlens/packlens/internal/config"
	"github.com/packlens/packlens/internal/credits"
	"github.com/packlens/packlens/internal/db"
	"github.com/packlens/packlens/internal/jobs"
	"github.com/packlens/packlens/internal/llm"
	"github.com/packlens/packlens/internal/models"
	"github.com/packlens/packlens/internal/progress"
	"github.com/packlens/packlens/internal/server"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// memStore is an in-memory source metadata store serving both the
// pipeline and the HTTP admin surface.
type memStore struct {
	mu      sync.Mutex
	sources map[string]*models.Source
	packs   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		sources: make(map[string]*models.Source),
		packs:   make(map[string]bool),
	}
}

func (m *memStore) CreatePack(ctx context.Context, packID, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.packs[packID] {
		return db.ErrAlreadyExists
	}
	m.packs[packID] = true
	return nil
}

func (m *memStore) CreateSource(ctx context.Context, sourceID, userID, packID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[sourceID]; ok {
		return db.ErrAlreadyExists
	}
	m.sources[sourceID] = &models.Source{
		ID:       surrealmodels.RecordID{Table: "source", ID: sourceID},
		UserID:   userID,
		PackID:   packID,
		Filename: filename,
		Status:   "pending",
	}
	return nil
}

func (m *memStore) ListSourcesByPack(ctx context.Context, packID string) ([]models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Source
	for _, src := range m.sources {
		if src.PackID == packID {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveSources(ctx context.Context, cutoff time.Time) ([]models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Source
	for _, src := range m.sources {
		switch src.Status {
		case "completed", "cancelled", "failed":
			continue
		}
		out = append(out, *src)
	}
	return out, nil
}

func (m *memStore) GetSource(ctx context.Context, sourceID string) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[sourceID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (m *memStore) UpdateSourceStatus(ctx context.Context, p db.UpdateSourceParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[p.SourceID]
	if !ok {
		return db.ErrNotFound
	}
	src.Status = p.Status
	src.Progress = p.Progress
	src.ProcessedChunks = p.ProcessedChunks
	src.TotalChunks = p.TotalChunks
	return nil
}

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	return &llm.Completion{Text: "analysis", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

type stubLedger struct {
	mu      sync.Mutex
	balance int
	txs     []models.CreditTransaction
}

func (l *stubLedger) GetPaymentStatus(ctx context.Context, userID string) (models.PaymentStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.PaymentStatus{Plan: "standard", Balance: l.balance}, nil
}

func (l *stubLedger) AddCredits(ctx context.Context, userID string, delta int, txType, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += delta
	l.txs = append(l.txs, models.CreditTransaction{
		UserID:      userID,
		Type:        txType,
		Credits:     delta,
		Description: description,
	})
	return nil
}

func (l *stubLedger) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.CreditTransaction(nil), l.txs...), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()

	store := newMemStore()
	ledger := &stubLedger{balance: 100}
	pipeline := analyzer.NewService(
		blob.NewMemoryStore(),
		store,
		stubCompleter{},
		jobs.NewRegistry(),
		progress.NewTracker(),
		credits.NewReconciler(ledger, nil),
		nil,
		nil,
		analyzer.Config{
			Model:             "gpt-4o-mini",
			MaxTokensPerChunk: 100,
			InitialCharWindow: 400,
			OverlapChars:      20,
			MinChunkChars:     10,
			MaxRetries:        1,
			Prices:            map[string]config.ModelPrice{},
		},
		testLogger(),
	)

	srv := server.New(":0", pipeline, store, ledger, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAddSource(t *testing.T) {
	ts, store := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"source_id": "src1",
		"user_id":   "user1",
		"content":   strings.Repeat("exported text ", 100),
		"filename":  "export.txt",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got struct {
		SourceID   string `json:"source_id"`
		ChunkCount int    `json:"chunk_count"`
	}
	decode(t, resp, &got)
	assert.Equal(t, "src1", got.SourceID)
	assert.Greater(t, got.ChunkCount, 0)

	src, err := store.GetSource(context.Background(), "src1")
	require.NoError(t, err)
	assert.Equal(t, "ready_for_analysis", src.Status)
}

func TestAddSource_GeneratesID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"user_id": "user1",
		"content": "short document",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got struct {
		SourceID string `json:"source_id"`
	}
	decode(t, resp, &got)
	assert.Len(t, got.SourceID, 8)
}

func TestAddSource_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"user_id": "user1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddSource_Duplicate(t *testing.T) {
	ts, _ := newTestServer(t)

	body := map[string]string{"source_id": "dup", "user_id": "user1", "content": "text"}
	resp := postJSON(t, ts.URL+"/api/packs/pack1/sources", body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/packs/pack1/sources", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAnalyze_Accepted(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/packs/pack1/sources/src1/analyze", map[string]string{
		"user_id": "user1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestAnalyze_RequiresUser(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/packs/pack1/sources/src1/analyze", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancel(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/jobs/job1/cancel", map[string]string{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got map[string]string
	decode(t, resp, &got)
	assert.Equal(t, "cancellation_requested", got["status"])
}

func TestProgress(t *testing.T) {
	ts, _ := newTestServer(t)

	// Unknown job with no durable record: 404.
	resp, err := http.Get(ts.URL + "/api/jobs/nope/progress")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Adding a source produces retained progress under the source ID.
	addResp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"source_id": "src1", "user_id": "user1", "content": "text",
	})
	addResp.Body.Close()
	require.Equal(t, http.StatusCreated, addResp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/jobs/src1/progress")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ev progress.Event
	decode(t, resp, &ev)
	assert.Equal(t, "chunked", ev.Step)
}

func TestListJobs(t *testing.T) {
	ts, _ := newTestServer(t)

	addResp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"source_id": "src1", "user_id": "user1", "content": "text",
	})
	addResp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/jobs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jobsList []struct {
		JobID string `json:"job_id"`
	}
	decode(t, resp, &jobsList)
	require.Len(t, jobsList, 1)
	assert.Equal(t, "src1", jobsList[0].JobID)
}

func TestHistory(t *testing.T) {
	ts, _ := newTestServer(t)

	addResp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"source_id": "src1", "user_id": "user1", "content": "text",
	})
	addResp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/jobs/src1/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []progress.Event
	decode(t, resp, &events)
	require.NotEmpty(t, events)
	assert.Equal(t, "extracting", events[0].Step)
	assert.Equal(t, "chunked", events[len(events)-1].Step)
}

func TestHistory_BadSince(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/jobs/src1/history?since=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap map[string]any
	decode(t, resp, &snap)
	assert.Contains(t, snap, "UptimeSeconds")
}

func TestMethodRouting(t *testing.T) {
	ts, _ := newTestServer(t)

	// GET on a POST-only route is rejected by the mux.
	resp, err := http.Get(ts.URL + "/api/packs/pack1/sources")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCreatePack(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/packs", map[string]string{
		"pack_id": "personal", "user_id": "user1", "name": "Personal",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got map[string]string
	decode(t, resp, &got)
	assert.Equal(t, "personal", got["pack_id"])

	// Duplicate pack IDs conflict.
	resp = postJSON(t, ts.URL+"/api/packs", map[string]string{
		"pack_id": "personal", "user_id": "user1",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListSources(t *testing.T) {
	ts, _ := newTestServer(t)

	addResp := postJSON(t, ts.URL+"/api/packs/pack1/sources", map[string]string{
		"source_id": "src1", "user_id": "user1", "content": "text", "filename": "a.txt",
	})
	addResp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/packs/pack1/sources")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []struct {
		SourceID string `json:"source_id"`
		Status   string `json:"status"`
	}
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "src1", list[0].SourceID)
	assert.Equal(t, "ready_for_analysis", list[0].Status)
}

func TestCredits(t *testing.T) {
	ts, _ := newTestServer(t)

	// Purchase credits, then read the balance back.
	resp := postJSON(t, ts.URL+"/api/users/user1/credits", map[string]any{
		"credits": 50, "description": "starter bundle",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bought struct {
		Balance int `json:"balance"`
	}
	decode(t, resp, &bought)
	assert.Equal(t, 150, bought.Balance)

	resp, err := http.Get(ts.URL + "/api/users/user1/credits")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Plan         string `json:"plan"`
		Balance      int    `json:"balance"`
		Transactions []struct {
			Type    string `json:"type"`
			Credits int    `json:"credits"`
		} `json:"transactions"`
	}
	decode(t, resp, &got)
	assert.Equal(t, "standard", got.Plan)
	assert.Equal(t, 150, got.Balance)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, models.TxPurchase, got.Transactions[0].Type)
}

func TestAddCredits_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/users/user1/credits", map[string]any{"credits": -5})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddSource_URLEscapedPack(t *testing.T) {
	ts, store := newTestServer(t)

	resp := postJSON(t, fmt.Sprintf("%s/api/packs/%s/sources", ts.URL, "my-pack"), map[string]string{
		"source_id": "src1", "user_id": "user1", "content": "text",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	src, err := store.GetSource(context.Background(), "src1")
	require.NoError(t, err)
	assert.Equal(t, "my-pack", src.PackID)
}
