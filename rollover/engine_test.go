package rollover

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfolio/commission_backend/models"
)

// seedCarryForward sets up the standard scenario: agent X earned only one of
// two commissions in January 2026 and has an empty February record waiting
// for rollover.
func seedCarryForward(store *fakeStore) {
	store.addRecord(models.AgentMonthRecord{
		AgentKey:  "agentx_202601",
		AgentName: "Agent X",
		Month:     "2026-01",
		CommissionData: []models.CommissionPair{
			{PropertyCode: "A", CommissionValue: strptr("50")},
			{PropertyCode: "B", CommissionValue: strptr("75")},
		},
		EarnedDetails: []models.EarnedDetail{
			{PropertyCode: "A", Commission: floatptr(50)},
		},
	})
	store.addRecord(models.AgentMonthRecord{
		AgentKey:  "agentx_202602",
		AgentName: "Agent X",
		Month:     "2026-02",
	})
}

func TestCalculateSimpleCarryForward(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)

	require.Len(t, mapping, 1)
	items := mapping["agentx"]
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].PropertyCode)
	require.NotNil(t, items[0].CommissionValue)
	assert.Equal(t, "75", *items[0].CommissionValue)
	assert.Equal(t, "2026-01", items[0].SourceMonth)
	assert.Equal(t, "January 2026", items[0].SourceMonthLabel)
	assert.True(t, items[0].IsRollover)

	// one persisted mapping entry per agent key
	assert.Equal(t, 1, store.mappingCount("2026-02"))
}

func TestCalculateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	engine := NewEngine(store, nil)

	first, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)

	// Mutate the source data; the persisted mapping must win over
	// recomputation from here on.
	store.mu.Lock()
	store.records = nil
	store.mu.Unlock()

	second, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.mappingCount("2026-02"))
}

func TestCalculateNoPreviousData(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Empty(t, mapping)

	status, err := engine.Status(context.Background(), "2026-02")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.RolloverReasonNoPreviousData, status.Reason)
	assert.Equal(t, "2026-01", status.SourceMonth)
	assert.Zero(t, status.ItemsMerged)
}

func TestCalculateNoIncompleteItems(t *testing.T) {
	store := newFakeStore()
	store.addRecord(models.AgentMonthRecord{
		AgentKey: "agentx_202601",
		Month:    "2026-01",
		CommissionData: []models.CommissionPair{
			{PropertyCode: "A", CommissionValue: strptr("50")},
		},
		EarnedDetails: []models.EarnedDetail{
			{PropertyCode: "A", Commission: floatptr(50)},
		},
	})
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Empty(t, mapping)

	status, err := engine.Status(context.Background(), "2026-02")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.RolloverReasonNoIncompleteItems, status.Reason)
}

func TestCalculateInvalidMonth(t *testing.T) {
	engine := NewEngine(newFakeStore(), nil)

	_, err := engine.Calculate(context.Background(), "2026-13")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestCalculateSkipsBrokenAgent(t *testing.T) {
	// A record with unparseable commission data must not block the rest of
	// the month.
	store := newFakeStore()
	store.addRecord(models.AgentMonthRecord{
		AgentKey:       "broken_202601",
		Month:          "2026-01",
		CommissionData: "total garbage {{{",
	})
	store.addRecord(models.AgentMonthRecord{
		AgentKey: "good_202601",
		Month:    "2026-01",
		CommissionData: []models.CommissionPair{
			{PropertyCode: "A", CommissionValue: strptr("10")},
		},
	})
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	require.Len(t, mapping, 1)
	assert.Contains(t, mapping, "good")
}

func TestCalculateSkipsEmptyKey(t *testing.T) {
	store := newFakeStore()
	store.addRecord(models.AgentMonthRecord{
		AgentName: "   ",
		Month:     "2026-01",
		CommissionData: []models.CommissionPair{
			{PropertyCode: "A", CommissionValue: strptr("10")},
		},
	})
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestCalculateStringEncodedCommissionData(t *testing.T) {
	// Legacy record whose pair list was stored as an escaped-quote string
	store := newFakeStore()
	store.addRecord(models.AgentMonthRecord{
		AgentKey:       "legacy_202601",
		Month:          "2026-01",
		CommissionData: `[{\"propertyCode\":\"A\",\"commissionValue\":\"30\"}]`,
	})
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	require.Len(t, mapping["legacy"], 1)
	assert.Equal(t, "A", mapping["legacy"][0].PropertyCode)
}

func TestApplyFillsGap(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)

	agentsUpdated, itemsMerged, err := engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)
	assert.Equal(t, 1, agentsUpdated)
	assert.Equal(t, 1, itemsMerged)

	recs, err := store.AgentRecordsByMonth(context.Background(), "2026-02")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	items, err := DecodeItems(recs[0].RolloverData)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].PropertyCode)
	assert.Equal(t, "2026-01", items[0].SourceMonth)
	assert.True(t, items[0].IsRollover)
	assert.NotNil(t, recs[0].LastRolloverSync)

	status, err := engine.Status(context.Background(), "2026-02")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.RolloverReasonContinuousSync, status.Reason)
	assert.Equal(t, 1, status.ItemsMerged)
}

func TestApplyAtMostOnce(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)

	_, _, err = engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)

	recs, _ := store.AgentRecordsByMonth(context.Background(), "2026-02")
	written := recs[0].RolloverData

	// Repeated applies must leave the field byte-for-byte unchanged and
	// merge nothing new.
	for i := 0; i < 3; i++ {
		agentsUpdated, itemsMerged, err := engine.Apply(context.Background(), "2026-02", mapping)
		require.NoError(t, err)
		assert.Zero(t, agentsUpdated)
		assert.Zero(t, itemsMerged)
	}

	recs, _ = store.AgentRecordsByMonth(context.Background(), "2026-02")
	assert.Equal(t, written, recs[0].RolloverData)
}

func TestApplyNeverOverwrites(t *testing.T) {
	store := newFakeStore()
	id := store.addRecord(models.AgentMonthRecord{
		AgentKey:     "agentx_202602",
		Month:        "2026-02",
		RolloverData: `[{"propertyCode":"OLD","commissionValue":"1","sourceMonth":"2026-01","isRollover":true}]`,
	})
	engine := NewEngine(store, nil)

	mapping := map[string][]models.RolloverItem{
		"agentx": {{
			CommissionPair: models.CommissionPair{PropertyCode: "NEW", CommissionValue: strptr("99")},
			SourceMonth:    "2026-01",
			IsRollover:     true,
		}},
	}

	agentsUpdated, itemsMerged, err := engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)
	assert.Zero(t, agentsUpdated)
	assert.Zero(t, itemsMerged)

	rec := store.recordByID(id)
	require.NotNil(t, rec)
	assert.Contains(t, rec.RolloverData, "OLD")
	assert.NotContains(t, rec.RolloverData, "NEW")
}

func TestApplyTreatsEmptyArrayAsMissing(t *testing.T) {
	store := newFakeStore()
	store.addRecord(models.AgentMonthRecord{
		AgentKey:     "agentx_202602",
		Month:        "2026-02",
		RolloverData: "[]",
	})
	engine := NewEngine(store, nil)

	mapping := map[string][]models.RolloverItem{
		"agentx": {{
			CommissionPair: models.CommissionPair{PropertyCode: "B", CommissionValue: strptr("75")},
			SourceMonth:    "2026-01",
			IsRollover:     true,
		}},
	}

	agentsUpdated, itemsMerged, err := engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)
	assert.Equal(t, 1, agentsUpdated)
	assert.Equal(t, 1, itemsMerged)
}

func TestApplyDeduplicatesItems(t *testing.T) {
	store := newFakeStore()
	store.addRecord(models.AgentMonthRecord{
		AgentKey: "agentx_202602",
		Month:    "2026-02",
	})
	engine := NewEngine(store, nil)

	dup := models.RolloverItem{
		CommissionPair: models.CommissionPair{PropertyCode: "B", CommissionValue: strptr("75")},
		SourceMonth:    "2026-01",
		IsRollover:     true,
	}
	mapping := map[string][]models.RolloverItem{
		"agentx": {dup, dup, {
			CommissionPair: models.CommissionPair{PropertyCode: "b ", CommissionValue: strptr("75")},
			SourceMonth:    "2026-01",
			IsRollover:     true,
		}},
	}

	_, itemsMerged, err := engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)
	assert.Equal(t, 1, itemsMerged)

	recs, _ := store.AgentRecordsByMonth(context.Background(), "2026-02")
	items, err := DecodeItems(recs[0].RolloverData)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestApplyContinuesAfterWriteFailure(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	store.failWrites = true
	engine := NewEngine(store, nil)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)

	agentsUpdated, itemsMerged, err := engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)
	assert.Zero(t, agentsUpdated)
	assert.Zero(t, itemsMerged)

	// The failed record is still unfilled, so the next sync picks it up.
	store.failWrites = false
	agentsUpdated, itemsMerged, err = engine.Apply(context.Background(), "2026-02", mapping)
	require.NoError(t, err)
	assert.Equal(t, 1, agentsUpdated)
	assert.Equal(t, 1, itemsMerged)
}

func TestSyncEndToEnd(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	engine := NewEngine(store, nil)

	result, err := engine.Sync(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.RolloverReasonContinuousSync, result.Reason)
	assert.Equal(t, "2026-01", result.SourceMonth)
	assert.Equal(t, 1, result.AgentsUpdated)
	assert.Equal(t, 1, result.ItemsMerged)

	// Second sync is a no-op gap fill.
	result, err = engine.Sync(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Zero(t, result.AgentsUpdated)
	assert.Zero(t, result.ItemsMerged)
}

func TestSyncInvalidMonthFailsSoft(t *testing.T) {
	engine := NewEngine(newFakeStore(), nil)

	result, err := engine.Sync(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Error)
}

func TestResetForcesRecalculation(t *testing.T) {
	store := newFakeStore()
	seedCarryForward(store)
	engine := NewEngine(store, nil)

	_, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	require.Equal(t, 1, store.mappingCount("2026-02"))

	require.NoError(t, engine.Reset(context.Background(), "2026-02"))
	assert.Zero(t, store.mappingCount("2026-02"))

	status, err := engine.Status(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Nil(t, status)

	mapping, err := engine.Calculate(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Len(t, mapping, 1)
}
