// Package credits reconciles the billing ledger with chunks actually
// processed.
package credits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/packlens/packlens/internal/models"
)

// Ledger is the external credit/payment service the reconciler consumes.
// Implemented by *db.Client in production and by fakes in tests.
type Ledger interface {
	GetPaymentStatus(ctx context.Context, userID string) (models.PaymentStatus, error)
	AddCredits(ctx context.Context, userID string, delta int, txType, description string) error
}

// MinBillableChunks is the threshold below which a stopped job is free.
// It exists so users are not billed for accidental near-instant
// cancellations. One credit buys one chunk.
const MinBillableChunks = 10

// Affordability is the pre-analysis answer to "how much may this user
// consume".
type Affordability struct {
	Plan          string
	ChunksAllowed int
	CanProcess    bool
	Unlimited     bool
}

// Reconciler computes affordability before analysis and settles the
// ledger after it.
type Reconciler struct {
	ledger Ledger
	logger *slog.Logger
}

// NewReconciler creates a reconciler over a ledger.
func NewReconciler(ledger Ledger, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{ledger: ledger, logger: logger}
}

// CheckAffordability reads the user's balance and reports how many chunks
// it covers. The unlimited plan bypasses balance checks entirely.
func (r *Reconciler) CheckAffordability(ctx context.Context, userID string) (Affordability, error) {
	status, err := r.ledger.GetPaymentStatus(ctx, userID)
	if err != nil {
		return Affordability{}, fmt.Errorf("check affordability: %w", err)
	}

	if status.Plan == models.PlanUnlimited {
		return Affordability{Plan: status.Plan, ChunksAllowed: 0, CanProcess: true, Unlimited: true}, nil
	}

	allowed := status.Balance
	if allowed < 0 {
		allowed = 0
	}
	return Affordability{
		Plan:          status.Plan,
		ChunksAllowed: allowed,
		CanProcess:    allowed > 0,
	}, nil
}

// Reconcile settles billing for a stopped job: chunks processed = credits
// consumed. It applies identically whether the job completed normally or
// was cancelled mid-flight; below MinBillableChunks no deduction occurs,
// and unlimited-plan users are never deducted.
//
// The caller guarantees exactly-once application per job: the analyzer
// invokes Reconcile exactly once on each exit path, and a source already
// in a terminal state is never re-analyzed.
func (r *Reconciler) Reconcile(ctx context.Context, user models.User, jobID string, chunksProcessed int, aff Affordability) error {
	if aff.Unlimited {
		r.logger.Debug("skipping credit deduction for unlimited plan",
			"user_id", user.ID, "job_id", jobID)
		return nil
	}
	if chunksProcessed < MinBillableChunks {
		r.logger.Info("below billing threshold, no deduction",
			"user_id", user.ID, "job_id", jobID, "chunks", chunksProcessed)
		return nil
	}

	desc := fmt.Sprintf("analysis of source %s: %d chunks processed", jobID, chunksProcessed)
	if err := r.ledger.AddCredits(ctx, user.ID, -chunksProcessed, models.TxUsage, desc); err != nil {
		return fmt.Errorf("deduct credits: %w", err)
	}

	r.logger.Info("credits deducted",
		"user_id", user.ID, "job_id", jobID, "credits", chunksProcessed)
	return nil
}
