// Package models defines data structures for the Packlens analysis backend.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Source is one uploaded document or export within a pack, independently
// chunked and analyzed. Mutated exclusively by the pipeline; never deleted
// by it.
type Source struct {
	ID               surrealmodels.RecordID `json:"id"`
	UserID           string                 `json:"user_id"`
	PackID           string                 `json:"pack_id"`
	Filename         string                 `json:"filename"`
	Status           string                 `json:"status"`
	Progress         float64                `json:"progress"`
	TotalChunks      int                    `json:"total_chunks"`
	ProcessedChunks  int                    `json:"processed_chunks"`
	TotalInputTokens int                    `json:"total_input_tokens"`
	TotalOutputToks  int                    `json:"total_output_tokens"`
	TotalCost        float64                `json:"total_cost"`
	ErrorMessage     *string                `json:"error_message,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Pack is a user-owned collection of sources whose analyses are combined
// into one exported context artifact.
type Pack struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"created_at"`
}

// CreditTransaction is one immutable ledger entry. Credits are signed
// whole units; the account balance is a materialized aggregate maintained
// by the ledger, not recomputed on read.
type CreditTransaction struct {
	ID          surrealmodels.RecordID `json:"id"`
	UserID      string                 `json:"user_id"`
	Type        string                 `json:"type"` // purchase, usage, refund, manual_add
	Credits     int                    `json:"credits"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Transaction types.
const (
	TxPurchase  = "purchase"
	TxUsage     = "usage"
	TxRefund    = "refund"
	TxManualAdd = "manual_add"
)

// PaymentStatus is the ledger's view of what a user may consume.
type PaymentStatus struct {
	Plan    string `json:"plan"`
	Balance int    `json:"balance"`
}

// PlanUnlimited bypasses balance checks and deductions entirely.
const PlanUnlimited = "unlimited"

// User identifies the owner of a pack for analysis and notification.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
