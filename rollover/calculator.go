package rollover

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/propfolio/commission_backend/models"
)

// ErrInvalidMonth is returned when a target month cannot be decremented.
// Callers surface it as a soft "no rollover" outcome, never a request failure.
var ErrInvalidMonth = errors.New("rollover: invalid target month")

// Engine runs the calculate-then-apply rollover reconciliation for a month.
// It holds no mutable state of its own; idempotency comes from the persisted
// mapping cache and the gap-filling apply query, so concurrent engines for
// the same month only waste work, they never corrupt it.
type Engine struct {
	store  Store
	locker *Locker
}

// NewEngine creates a rollover engine. locker may be nil; it only trims
// duplicated first-calculation work, correctness never depends on it.
func NewEngine(store Store, locker *Locker) *Engine {
	return &Engine{store: store, locker: locker}
}

// Result is the structured outcome of a rollover sync. Storage failures are
// returned as errors; everything else (bad month, nothing to do) lands here
// so the dashboard read path can degrade gracefully instead of failing.
type Result struct {
	Applied       bool   `json:"applied"`
	Reason        string `json:"reason,omitempty"`
	SourceMonth   string `json:"sourceMonth,omitempty"`
	AgentsUpdated int    `json:"agentsUpdated"`
	ItemsMerged   int    `json:"itemsMerged"`
	Error         string `json:"error,omitempty"`
}

// EncodeItems serializes a rollover item list for storage.
func EncodeItems(items []models.RolloverItem) (string, error) {
	encoded, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeItems deserializes a stored rollover item list.
func DecodeItems(serialized string) ([]models.RolloverItem, error) {
	var items []models.RolloverItem
	if err := json.Unmarshal([]byte(serialized), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Calculate produces the agent-key -> rollover-items mapping for a target
// month. The persisted mapping cache is the fast path: once a month has been
// calculated the stored result is reloaded verbatim and no recomputation
// happens. Per-agent parse failures are logged and that agent is skipped;
// only storage failures abort the run.
func (e *Engine) Calculate(ctx context.Context, targetMonth string) (map[string][]models.RolloverItem, error) {
	previousMonth, ok := PreviousMonth(targetMonth)
	if !ok {
		return nil, ErrInvalidMonth
	}

	cached, err := e.store.MappingsByMonth(ctx, targetMonth)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return e.loadCachedMapping(cached), nil
	}

	if e.locker != nil {
		release, acquired := e.locker.Acquire(ctx, targetMonth)
		if acquired {
			defer release()
		} else {
			// Another calculator is working on this month; give it a moment
			// and prefer its persisted result over recomputing.
			if cached := e.awaitMapping(ctx, targetMonth); cached != nil {
				return cached, nil
			}
		}
	}

	return e.calculateFresh(ctx, targetMonth, previousMonth)
}

func (e *Engine) calculateFresh(ctx context.Context, targetMonth, previousMonth string) (map[string][]models.RolloverItem, error) {
	records, err := e.store.AgentRecordsByMonth(ctx, previousMonth)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		e.markApplied(ctx, targetMonth, 0, models.RolloverReasonNoPreviousData, previousMonth)
		return map[string][]models.RolloverItem{}, nil
	}

	mapping := make(map[string][]models.RolloverItem)
	sourceLabel := MonthLabel(previousMonth)
	totalItems := 0

	for _, rec := range records {
		key := ResolveAgentKey(rec)
		if key == "" {
			continue
		}

		pairs, err := NormalizePairs(rec.CommissionData)
		if err != nil {
			log.Printf("Rollover: skipping agent %q for %s, bad commission data: %v", key, previousMonth, err)
			continue
		}
		incomplete := SelectIncomplete(pairs, wellFormedEarned(rec.EarnedDetails))
		if len(incomplete) == 0 {
			continue
		}

		items := make([]models.RolloverItem, 0, len(incomplete))
		for _, pair := range incomplete {
			items = append(items, models.RolloverItem{
				CommissionPair:   pair,
				SourceMonth:      previousMonth,
				SourceMonthLabel: sourceLabel,
				IsRollover:       true,
			})
		}

		serialized, err := EncodeItems(items)
		if err != nil {
			log.Printf("Rollover: failed to serialize items for agent %q: %v", key, err)
			continue
		}
		if err := e.store.UpsertMapping(ctx, models.RolloverMapping{
			Month:        targetMonth,
			AgentKey:     key,
			Items:        serialized,
			ItemCount:    len(items),
			CalculatedAt: time.Now(),
		}); err != nil {
			log.Printf("Rollover: failed to persist mapping for agent %q: %v", key, err)
			continue
		}

		mapping[key] = items
		totalItems += len(items)
	}

	if len(mapping) == 0 {
		e.markApplied(ctx, targetMonth, 0, models.RolloverReasonNoIncompleteItems, previousMonth)
	} else {
		e.markApplied(ctx, targetMonth, totalItems, models.RolloverReasonSuccess, previousMonth)
	}
	return mapping, nil
}

// loadCachedMapping reconstructs the mapping from persisted cache entries.
// An entry that fails to deserialize is logged and dropped rather than
// poisoning the whole month.
func (e *Engine) loadCachedMapping(cached []models.RolloverMapping) map[string][]models.RolloverItem {
	mapping := make(map[string][]models.RolloverItem, len(cached))
	for _, entry := range cached {
		items, err := DecodeItems(entry.Items)
		if err != nil {
			log.Printf("Rollover: bad cached mapping for %s/%s: %v", entry.Month, entry.AgentKey, err)
			continue
		}
		if len(items) > 0 {
			mapping[entry.AgentKey] = items
		}
	}
	return mapping
}

// awaitMapping polls briefly for a concurrent calculator's persisted result.
// Returns nil if nothing shows up; the caller then computes itself, which is
// safe because both sides compute the same deterministic mapping.
func (e *Engine) awaitMapping(ctx context.Context, targetMonth string) map[string][]models.RolloverItem {
	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(200 * time.Millisecond):
		}
		cached, err := e.store.MappingsByMonth(ctx, targetMonth)
		if err != nil {
			return nil
		}
		if len(cached) > 0 {
			return e.loadCachedMapping(cached)
		}
	}
	return nil
}

// Sync runs calculate-then-apply for a month and folds the outcome into a
// Result. Storage failures come back as the error; the caller is expected to
// log and serve the dashboard without rollover rather than fail the request.
func (e *Engine) Sync(ctx context.Context, targetMonth string) (Result, error) {
	previousMonth, ok := PreviousMonth(targetMonth)
	if !ok {
		return Result{Applied: false, Error: "cannot determine previous month for " + targetMonth}, nil
	}

	mapping, err := e.Calculate(ctx, targetMonth)
	if err != nil {
		if errors.Is(err, ErrInvalidMonth) {
			return Result{Applied: false, Error: err.Error()}, nil
		}
		return Result{Applied: false, Error: err.Error()}, err
	}

	agentsUpdated, itemsMerged, err := e.Apply(ctx, targetMonth, mapping)
	if err != nil {
		return Result{Applied: false, SourceMonth: previousMonth, Error: err.Error()}, err
	}

	return Result{
		Applied:       true,
		Reason:        models.RolloverReasonContinuousSync,
		SourceMonth:   previousMonth,
		AgentsUpdated: agentsUpdated,
		ItemsMerged:   itemsMerged,
	}, nil
}
