// Package client provides an HTTP client for the Packlens server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/packlens/packlens/internal/metrics"
	"github.com/packlens/packlens/internal/progress"
)

// Client talks to the Packlens server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. If endpoint is empty, PACKLENS_SERVER_URL is
// used, defaulting to localhost:8585.
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("PACKLENS_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8585"
	}
	endpoint = strings.TrimRight(endpoint, "/")

	timeout := 5 * time.Minute
	if t := os.Getenv("PACKLENS_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreatePack registers a pack for a user, returning its ID.
func (c *Client) CreatePack(ctx context.Context, packID, userID, name string) (string, error) {
	var result struct {
		PackID string `json:"pack_id"`
	}
	body := map[string]string{"pack_id": packID, "user_id": userID, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/packs", body, &result); err != nil {
		return "", err
	}
	return result.PackID, nil
}

// SourceView is one entry in a pack's source listing.
type SourceView struct {
	SourceID        string  `json:"source_id"`
	Filename        string  `json:"filename"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	ProcessedChunks int     `json:"processed_chunks"`
	TotalChunks     int     `json:"total_chunks"`
}

// ListSources returns the sources in a pack.
func (c *Client) ListSources(ctx context.Context, packID string) ([]SourceView, error) {
	var list []SourceView
	path := fmt.Sprintf("/api/packs/%s/sources", url.PathEscape(packID))
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Transaction is one ledger entry in a credits report.
type Transaction struct {
	Type        string    `json:"type"`
	Credits     int       `json:"credits"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreditsReport is a user's plan, balance and recent ledger entries.
type CreditsReport struct {
	Plan         string        `json:"plan"`
	Balance      int           `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// Credits returns a user's credit standing.
func (c *Client) Credits(ctx context.Context, userID string) (*CreditsReport, error) {
	var report CreditsReport
	path := fmt.Sprintf("/api/users/%s/credits", url.PathEscape(userID))
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// BuyCredits adds credits to a user's balance and returns the new balance.
func (c *Client) BuyCredits(ctx context.Context, userID string, credits int, description string) (int, error) {
	var result struct {
		Balance int `json:"balance"`
	}
	path := fmt.Sprintf("/api/users/%s/credits", url.PathEscape(userID))
	body := map[string]any{"credits": credits, "description": description}
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return 0, err
	}
	return result.Balance, nil
}

// AddSourceInput describes a source upload.
type AddSourceInput struct {
	SourceID string `json:"source_id,omitempty"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content"`
}

// AddSourceResult is the server's response to a source upload.
type AddSourceResult struct {
	SourceID   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
}

// AddSource registers a source in a pack and chunks it.
func (c *Client) AddSource(ctx context.Context, packID string, input AddSourceInput) (*AddSourceResult, error) {
	var result AddSourceResult
	path := fmt.Sprintf("/api/packs/%s/sources", url.PathEscape(packID))
	if err := c.do(ctx, http.MethodPost, path, input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeInput describes an analysis run.
type AnalyzeInput struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	Filename     string `json:"filename,omitempty"`
	MaxChunks    int    `json:"max_chunks,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// Analyze starts analysis of a prepared source. The server responds
// before the job finishes; watch progress separately.
func (c *Client) Analyze(ctx context.Context, packID, sourceID string, input AnalyzeInput) error {
	path := fmt.Sprintf("/api/packs/%s/sources/%s/analyze",
		url.PathEscape(packID), url.PathEscape(sourceID))
	return c.do(ctx, http.MethodPost, path, input, nil)
}

// Cancel requests cancellation of a running job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("/api/jobs/%s/cancel", url.PathEscape(jobID))
	return c.do(ctx, http.MethodPost, path, struct{}{}, nil)
}

// JobView is one entry in the jobs listing.
type JobView struct {
	JobID  string          `json:"job_id"`
	Latest *progress.Event `json:"latest,omitempty"`
}

// ListJobs returns jobs with retained progress.
func (c *Client) ListJobs(ctx context.Context) ([]JobView, error) {
	var jobs []JobView
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Progress returns the latest progress event for a job.
func (c *Client) Progress(ctx context.Context, jobID string) (*progress.Event, error) {
	var ev progress.Event
	path := fmt.Sprintf("/api/jobs/%s/progress", url.PathEscape(jobID))
	if err := c.do(ctx, http.MethodGet, path, nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// History returns a job's progress events after since.
func (c *Client) History(ctx context.Context, jobID string, since time.Time) ([]progress.Event, error) {
	path := fmt.Sprintf("/api/jobs/%s/history", url.PathEscape(jobID))
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339Nano))
	}
	var events []progress.Event
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Stats returns the server's runtime metrics snapshot.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Stream subscribes to a job's progress over WebSocket, invoking fn for
// each event until the stream closes or the context ends.
func (c *Client) Stream(ctx context.Context, jobID string, fn func(progress.Event)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		fmt.Sprintf("/api/jobs/%s/stream", url.PathEscape(jobID))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev progress.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		fn(ev)
	}
}
