package rollover

import (
	"strings"

	"github.com/propfolio/commission_backend/models"
)

// ResolveAgentKey derives the stable join key used to match an agent's
// records across months. The composite "<agentId>_<YYYYMM>" identifier wins
// because it survives renames; the normalized display name is the fallback
// for legacy records. Calculator and applicator both go through this one
// function — any divergence between the two sides silently loses matches.
//
// An empty key means the record has nothing to join on and is skipped by
// the engine; that is not an error.
func ResolveAgentKey(rec models.AgentMonthRecord) string {
	if idx := strings.Index(rec.AgentKey, "_"); idx >= 0 {
		return rec.AgentKey[:idx]
	}
	return strings.ToLower(strings.TrimSpace(rec.AgentName))
}
