package rollover

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/propfolio/commission_backend/models"
)

// maxDecodeDepth bounds how many layers of string-in-string encoding the
// normalizer will peel; real data has at most two.
const maxDecodeDepth = 4

// NormalizePairs converts whatever shape the storage layer hands us into a
// canonical pair slice. The commissionData field has accumulated several
// encodings over the years (native arrays, JSON strings, double-encoded
// JSON strings, escaped-quote strings) and a single malformed record must
// not block reconciliation for the rest of the month, so every failure is
// returned to the caller to log rather than raised.
func NormalizePairs(raw interface{}) ([]models.CommissionPair, error) {
	switch v := raw.(type) {
	case nil:
		return []models.CommissionPair{}, nil
	case []models.CommissionPair:
		return v, nil
	case string:
		return parsePairText(v, 0)
	default:
		// bson decodes stored arrays as primitive.A of bson.M; a JSON
		// round-trip is the one conversion path for all of them.
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("commission data has unusable shape %T: %w", raw, err)
		}
		var pairs []models.CommissionPair
		if err := json.Unmarshal(encoded, &pairs); err != nil {
			return nil, fmt.Errorf("commission data is not a pair list: %w", err)
		}
		return pairs, nil
	}
}

func parsePairText(s string, depth int) ([]models.CommissionPair, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return []models.CommissionPair{}, nil
	}

	// Direct parse.
	var pairs []models.CommissionPair
	if err := json.Unmarshal([]byte(trimmed), &pairs); err == nil {
		if pairs == nil {
			pairs = []models.CommissionPair{}
		}
		return pairs, nil
	}

	// Double-encoded: the value is a JSON string wrapping the real payload.
	if depth < maxDecodeDepth {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			return parsePairText(inner, depth+1)
		}
	}

	// Legacy cleanup: older ingestion wrote escaped quotes and sometimes an
	// extra symmetric layer of outer quotes.
	cleaned := strings.ReplaceAll(trimmed, `\"`, `"`)
	if len(cleaned) >= 2 && cleaned[0] == '"' && cleaned[len(cleaned)-1] == '"' {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if err := json.Unmarshal([]byte(cleaned), &pairs); err == nil {
		if pairs == nil {
			pairs = []models.CommissionPair{}
		}
		return pairs, nil
	}

	return nil, fmt.Errorf("commission data not parseable after all strategies: %.80q", s)
}
