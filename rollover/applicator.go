package rollover

import (
	"context"
	"log"

	"github.com/propfolio/commission_backend/models"
)

// Apply merges calculated rollover items into the target month's agent
// records. Only records that have never received rollover data are touched
// (gap filling); a record with a non-empty rollover field is considered
// synced and is never overwritten, which is what makes running this on every
// dashboard read safe. Items are deduplicated by (property code, source
// month) before writing so a logical item lands at most once no matter how
// many times apply runs.
//
// A write failure for one record is logged and the batch continues; the
// failed record simply stays in the "missing rollover" set and is picked up
// by the next sync. The status ledger is updated on every run, including
// runs that merged nothing.
func (e *Engine) Apply(ctx context.Context, targetMonth string, mapping map[string][]models.RolloverItem) (agentsUpdated, itemsMerged int, err error) {
	records, err := e.store.AgentRecordsMissingRollover(ctx, targetMonth)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		key := ResolveAgentKey(rec)
		if key == "" {
			continue
		}
		items := dedupeItems(mapping[key])
		if len(items) == 0 {
			continue
		}

		serialized, encErr := EncodeItems(items)
		if encErr != nil {
			log.Printf("Rollover: failed to serialize items for agent %q in %s: %v", key, targetMonth, encErr)
			continue
		}
		if writeErr := e.store.WriteRolloverData(ctx, rec.ID, serialized); writeErr != nil {
			log.Printf("Rollover: failed to write rollover data for agent %q in %s: %v", key, targetMonth, writeErr)
			continue
		}

		agentsUpdated++
		itemsMerged += len(items)
	}

	sourceMonth, _ := PreviousMonth(targetMonth)
	e.markApplied(ctx, targetMonth, itemsMerged, models.RolloverReasonContinuousSync, sourceMonth)
	return agentsUpdated, itemsMerged, nil
}

// dedupeItems drops repeated (property code, source month) combinations,
// keeping first occurrence order. Valid source data never has duplicates,
// but mapping entries written by older engine versions occasionally did.
func dedupeItems(items []models.RolloverItem) []models.RolloverItem {
	if len(items) < 2 {
		return items
	}
	type itemKey struct {
		code  string
		month string
	}
	seen := make(map[itemKey]struct{}, len(items))
	out := make([]models.RolloverItem, 0, len(items))
	for _, item := range items {
		k := itemKey{code: normalizeCode(item.PropertyCode), month: item.SourceMonth}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
