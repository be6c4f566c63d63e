package rollover

import (
	"math"
	"strings"

	"github.com/propfolio/commission_backend/models"
	"github.com/propfolio/commission_backend/utils"
)

// normalizeCode is the join normalization for property codes, applied
// identically on the pair side and the earned side.
func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// SelectIncomplete returns the pairs that represent still-unpaid, non-zero
// commissions: a valid pair with no earned detail for its property code.
//
// Note the deliberate asymmetry: a pair whose value parses to 0 is ignored,
// but an earned detail with amount 0 still counts as paid. Downstream
// consumers depend on this, so it is preserved rather than fixed.
// Input order is preserved; no deduplication happens here.
func SelectIncomplete(pairs []models.CommissionPair, earned []models.EarnedDetail) []models.CommissionPair {
	earnedCodes := make(map[string]struct{}, len(earned))
	for _, d := range earned {
		if code := normalizeCode(d.PropertyCode); code != "" {
			earnedCodes[code] = struct{}{}
		}
	}

	incomplete := make([]models.CommissionPair, 0, len(pairs))
	for _, pair := range pairs {
		if pair.CommissionValue == nil {
			continue
		}
		value := strings.TrimSpace(*pair.CommissionValue)
		if value == "" || value == "null" {
			continue
		}
		amount, err := utils.ParseFloat(value)
		if err != nil || math.IsNaN(amount) || amount == 0 {
			continue
		}
		code := normalizeCode(pair.PropertyCode)
		if code == "" {
			continue
		}
		if _, paid := earnedCodes[code]; paid {
			continue
		}
		incomplete = append(incomplete, pair)
	}
	return incomplete
}

// wellFormedEarned filters earned details down to entries usable for the
// exclusion set: the property code and the commission field must both be
// present. The amount itself is not inspected.
func wellFormedEarned(details []models.EarnedDetail) []models.EarnedDetail {
	out := make([]models.EarnedDetail, 0, len(details))
	for _, d := range details {
		if strings.TrimSpace(d.PropertyCode) == "" || d.Commission == nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
