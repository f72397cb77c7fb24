// Package db provides SurrealDB query functions for the ledger/metadata
// service: sources, packs, accounts and the credit ledger.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/packlens/packlens/internal/models"
)

// CreatePack creates a pack owned by a user.
func (c *Client) CreatePack(ctx context.Context, packID, userID, name string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("pack", $id) SET
			user_id = $user,
			name = $name
	`, map[string]any{"id": packID, "user": userID, "name": name})
	if err != nil {
		return fmt.Errorf("create pack: %w", wrapQueryError(err))
	}
	return nil
}

// CreateSource registers a new source in the pending state.
func (c *Client) CreateSource(ctx context.Context, sourceID, userID, packID, filename string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("source", $id) SET
			user_id = $user,
			pack_id = $pack,
			filename = $filename,
			status = "pending"
	`, map[string]any{"id": sourceID, "user": userID, "pack": packID, "filename": filename})
	if err != nil {
		return fmt.Errorf("create source: %w", wrapQueryError(err))
	}
	return nil
}

// GetSource retrieves a source by ID. Returns ErrNotFound if missing.
func (c *Client) GetSource(ctx context.Context, sourceID string) (*models.Source, error) {
	results, err := surrealdb.Query[[]models.Source](ctx, c.db, `
		SELECT * FROM type::record("source", $id)
	`, map[string]any{"id": sourceID})
	if err != nil {
		return nil, fmt.Errorf("get source: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, sourceID)
	}
	return &(*results)[0].Result[0], nil
}

// UpdateSourceParams carries one durable status checkpoint for a source.
// Zero-valued counters are written as-is: the pipeline always sends the
// full snapshot, never a partial patch.
type UpdateSourceParams struct {
	SourceID        string
	Status          string
	Progress        float64
	ProcessedChunks int
	TotalChunks     int
	InputTokens     int
	OutputTokens    int
	Cost            float64
	ErrorMessage    string
}

// UpdateSourceStatus persists a pipeline checkpoint for a source. This is
// the durability point that makes crash recovery and partial-completion
// billing possible, so it is written after every chunk.
func (c *Client) UpdateSourceStatus(ctx context.Context, p UpdateSourceParams) error {
	vars := map[string]any{
		"id":       p.SourceID,
		"status":   p.Status,
		"progress": p.Progress,
		"proc":     p.ProcessedChunks,
		"total":    p.TotalChunks,
		"in_tok":   p.InputTokens,
		"out_tok":  p.OutputTokens,
		"cost":     p.Cost,
	}

	errClause := "error_message = NONE"
	if p.ErrorMessage != "" {
		errClause = "error_message = $err"
		vars["err"] = p.ErrorMessage
	}

	sql := fmt.Sprintf(`
		UPDATE type::record("source", $id) SET
			status = $status,
			progress = $progress,
			processed_chunks = $proc,
			total_chunks = $total,
			total_input_tokens = $in_tok,
			total_output_tokens = $out_tok,
			total_cost = $cost,
			%s,
			updated_at = time::now()
	`, errClause)

	if _, err := surrealdb.Query[any](ctx, c.db, sql, vars); err != nil {
		return fmt.Errorf("update source status: %w", wrapQueryError(err))
	}
	return nil
}

// GetPaymentStatus returns the user's plan and materialized credit
// balance. Unknown users get a zero-balance standard account.
func (c *Client) GetPaymentStatus(ctx context.Context, userID string) (models.PaymentStatus, error) {
	results, err := surrealdb.Query[[]models.PaymentStatus](ctx, c.db, `
		SELECT plan, balance FROM account WHERE user_id = $user LIMIT 1
	`, map[string]any{"user": userID})
	if err != nil {
		return models.PaymentStatus{}, fmt.Errorf("get payment status: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.PaymentStatus{Plan: "standard", Balance: 0}, nil
	}
	return (*results)[0].Result[0], nil
}

// AddCredits records an immutable ledger transaction and adjusts the
// materialized balance in the same statement batch. delta is signed:
// deductions are negative.
func (c *Client) AddCredits(ctx context.Context, userID string, delta int, txType, description string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		CREATE credit_tx SET
			user_id = $user,
			type = $type,
			credits = $delta,
			description = $desc;
		UPDATE account SET balance += $delta WHERE user_id = $user;
		COMMIT TRANSACTION;
	`, map[string]any{"user": userID, "type": txType, "delta": delta, "desc": description})
	if err != nil {
		return fmt.Errorf("add credits: %w", wrapQueryError(err))
	}
	return nil
}

// ListTransactions returns a user's ledger entries, most recent first.
func (c *Client) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]models.CreditTransaction](ctx, c.db, `
		SELECT * FROM credit_tx WHERE user_id = $user
		ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"user": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.CreditTransaction{}, nil
}

// ListSourcesByPack returns the sources in a pack, oldest first.
func (c *Client) ListSourcesByPack(ctx context.Context, packID string) ([]models.Source, error) {
	results, err := surrealdb.Query[[]models.Source](ctx, c.db, `
		SELECT * FROM source WHERE pack_id = $pack ORDER BY created_at ASC
	`, map[string]any{"pack": packID})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.Source{}, nil
}

// ListActiveSources returns sources updated since cutoff that are not in
// a terminal state, for the jobs listing.
func (c *Client) ListActiveSources(ctx context.Context, cutoff time.Time) ([]models.Source, error) {
	results, err := surrealdb.Query[[]models.Source](ctx, c.db, `
		SELECT * FROM source
		WHERE updated_at > $cutoff
		ORDER BY updated_at DESC
	`, map[string]any{"cutoff": cutoff})
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.Source{}, nil
}
