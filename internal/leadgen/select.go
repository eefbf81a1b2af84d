package leadgen

import (
	"sort"

	"github.com/sells-group/leadgen/internal/model"
)

// QualificationThreshold is the minimum score a candidate needs to become
// a lead.
const QualificationThreshold = 60

// Select drops candidates below threshold, ranks the rest by score
// (provider order breaks ties) and keeps at most n.
func Select(scored []model.ScoredCandidate, threshold, n int) []model.ScoredCandidate {
	kept := make([]model.ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.Score >= threshold {
			kept = append(kept, sc)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if n >= 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}
