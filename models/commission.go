package models

import (
	"encoding/json"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommissionPair is one property's commission entry for an agent in a month.
// CommissionValue is kept as a string because the ingestion side has written
// both quoted numbers and the literal "null" over time; validity is decided
// by the rollover selector, not here.
type CommissionPair struct {
	PropertyCode    string  `bson:"propertyCode" json:"propertyCode"`
	CommissionValue *string `bson:"commissionValue" json:"commissionValue"`
}

// UnmarshalJSON tolerates the historical encodings of commissionValue:
// a quoted string, a bare number, or null.
func (p *CommissionPair) UnmarshalJSON(data []byte) error {
	var raw struct {
		PropertyCode    string          `json:"propertyCode"`
		CommissionValue json.RawMessage `json:"commissionValue"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.PropertyCode = raw.PropertyCode
	p.CommissionValue = nil

	if len(raw.CommissionValue) == 0 || string(raw.CommissionValue) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.CommissionValue, &s); err == nil {
		p.CommissionValue = &s
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw.CommissionValue, &n); err == nil {
		formatted := strconv.FormatFloat(n, 'f', -1, 64)
		p.CommissionValue = &formatted
	}
	return nil
}

// EarnedDetail confirms that a property's commission was actually paid out.
// Commission is a pointer: its presence, not its value, is what marks the
// property as resolved for rollover purposes.
type EarnedDetail struct {
	PropertyCode string   `bson:"propertyCode" json:"propertyCode"`
	Commission   *float64 `bson:"commission" json:"commission"`
}

// RolloverItem is a CommissionPair carried forward from the previous month,
// tagged with its origin month so it can never be merged twice.
type RolloverItem struct {
	CommissionPair   `bson:",inline"`
	SourceMonth      string `bson:"sourceMonth" json:"sourceMonth"`
	SourceMonthLabel string `bson:"sourceMonthLabel" json:"sourceMonthLabel"`
	IsRollover       bool   `bson:"isRollover" json:"isRollover"`
}

// UnmarshalJSON keeps the tolerant CommissionPair decoding while still
// picking up the rollover provenance fields.
func (r *RolloverItem) UnmarshalJSON(data []byte) error {
	if err := r.CommissionPair.UnmarshalJSON(data); err != nil {
		return err
	}
	var meta struct {
		SourceMonth      string `json:"sourceMonth"`
		SourceMonthLabel string `json:"sourceMonthLabel"`
		IsRollover       bool   `json:"isRollover"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	r.SourceMonth = meta.SourceMonth
	r.SourceMonthLabel = meta.SourceMonthLabel
	r.IsRollover = meta.IsRollover
	return nil
}

// Rollover status reasons recorded in the status ledger.
const (
	RolloverReasonNoPreviousData    = "no_previous_data"
	RolloverReasonNoIncompleteItems = "no_incomplete_items"
	RolloverReasonSuccess           = "success"
	RolloverReasonContinuousSync    = "success_continuous_sync"
)

// RolloverStatus is one record per target month tracking whether rollover
// computation/application has run and why it concluded the way it did.
// Diagnostics only; correctness never depends on it.
type RolloverStatus struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Month       string             `bson:"month" json:"month"`
	Applied     bool               `bson:"applied" json:"applied"`
	AppliedAt   time.Time          `bson:"appliedAt" json:"appliedAt"`
	ItemsMerged int                `bson:"itemsMerged" json:"itemsMerged"`
	Reason      string             `bson:"reason" json:"reason"`
	SourceMonth string             `bson:"sourceMonth,omitempty" json:"sourceMonth,omitempty"`
}

// RolloverMapping is the persisted calculation cache: one record per
// (target month, agent key) holding the serialized rollover items. Once a
// month has mappings the calculator loads them instead of recomputing.
type RolloverMapping struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Month        string             `bson:"month" json:"month"`
	AgentKey     string             `bson:"agentKey" json:"agentKey"`
	Items        string             `bson:"items" json:"items"`
	ItemCount    int                `bson:"itemCount" json:"itemCount"`
	CalculatedAt time.Time          `bson:"calculatedAt" json:"calculatedAt"`
}
