package rollover

import (
	"context"
	"log"
	"time"

	"github.com/propfolio/commission_backend/models"
)

// markApplied upserts the status ledger entry for a month. The ledger is
// diagnostics and short-circuit hints only, so a failed write is logged and
// swallowed rather than failing the reconciliation that produced it.
func (e *Engine) markApplied(ctx context.Context, month string, itemsMerged int, reason, sourceMonth string) {
	status := models.RolloverStatus{
		Month:       month,
		Applied:     true,
		AppliedAt:   time.Now(),
		ItemsMerged: itemsMerged,
		Reason:      reason,
		SourceMonth: sourceMonth,
	}
	if err := e.store.UpsertStatus(ctx, status); err != nil {
		log.Printf("Rollover: failed to update status for %s (%s): %v", month, reason, err)
	}
}

// Status returns the ledger entry for a month, nil if rollover has never run.
func (e *Engine) Status(ctx context.Context, month string) (*models.RolloverStatus, error) {
	return e.store.StatusByMonth(ctx, month)
}

// Reset clears a month's mapping cache and status so the next sync
// recalculates from source data. Used by the admin recalculation endpoint.
func (e *Engine) Reset(ctx context.Context, month string) error {
	return e.store.ClearMonth(ctx, month)
}
