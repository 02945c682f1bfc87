package detect

import (
	"sort"

	"github.com/whaletrack/engine/internal/domain"
)

// lowCutoff is the floor below which a market is never surfaced, regardless
// of the configured minimum score.
const lowCutoff = 25

// Rank filters, orders, and truncates a tick's scored recommendations. It is
// a pure function: entries below minScore (and always below the LOW tier
// cutoff) are dropped, the rest sorted descending by score with a
// deterministic ascending market-ID tie-break, and the top topN returned.
func Rank(recs []domain.Recommendation, minScore, topN int) []domain.Recommendation {
	cutoff := minScore
	if cutoff < lowCutoff {
		cutoff = lowCutoff
	}

	filtered := make([]domain.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.WhaleScore >= cutoff {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].WhaleScore != filtered[j].WhaleScore {
			return filtered[i].WhaleScore > filtered[j].WhaleScore
		}
		return filtered[i].MarketID < filtered[j].MarketID
	})

	if topN > 0 && len(filtered) > topN {
		filtered = filtered[:topN]
	}
	return filtered
}
