package scoring

import (
	"github.com/sells-group/leadgen/internal/model"
)

const (
	// BaseScore is every candidate's starting point.
	BaseScore = 50
	MinScore  = 0
	MaxScore  = 100
)

// Scorer applies a rule table. It is pure and safe for concurrent use.
type Scorer struct {
	rules []Rule
}

// New returns a Scorer over DefaultRules. points overrides rule values by
// rule name; unknown names are ignored.
func New(points map[string]int) *Scorer {
	rules := DefaultRules()
	for i := range rules {
		if p, ok := points[rules[i].Name]; ok {
			rules[i].Points = p
		}
	}
	return &Scorer{rules: rules}
}

// Rules returns a copy of the rule table.
func (s *Scorer) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Score rates c against the raw criteria. It returns the clamped total and
// the names of the rules that fired, in table order.
func (s *Scorer) Score(c model.Candidate, crit model.Criteria) (int, []string) {
	total := BaseScore
	var matched []string
	done := make(map[Dimension]bool, len(s.rules))

	for _, r := range s.rules {
		if done[r.Dimension] {
			continue
		}
		if r.Match(c, crit) {
			total += r.Points
			matched = append(matched, r.Name)
			done[r.Dimension] = true
		}
	}

	return clamp(total), matched
}

// ScoreAll scores every candidate, preserving input order.
func (s *Scorer) ScoreAll(cands []model.Candidate, crit model.Criteria) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		score, matched := s.Score(c, crit)
		out = append(out, model.ScoredCandidate{
			Candidate: c,
			Score:     score,
			Matched:   matched,
			Criteria:  crit,
		})
	}
	return out
}

func clamp(v int) int {
	return max(MinScore, min(MaxScore, v))
}
