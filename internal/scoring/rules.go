// Package scoring rates how well a prospect fits the caller's targeting
// criteria on a 0-100 scale.
package scoring

import (
	"strings"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
)

// Dimension groups rules that compete: only the first matching rule of a
// dimension scores.
type Dimension string

const (
	DimSector   Dimension = "sector"
	DimSize     Dimension = "size"
	DimLocation Dimension = "location"
	DimTitle    Dimension = "title"

	// DimEmail and DimSocial hold one rule each, so they always add up.
	DimEmail  Dimension = "email"
	DimSocial Dimension = "social"
)

// Rule is one named bonus.
type Rule struct {
	Dimension Dimension
	Name      string
	Points    int
	Match     func(c model.Candidate, crit model.Criteria) bool
}

var (
	techFamily         = []string{"tech", "software", "saas"}
	userSeniority      = []string{"ceo", "directeur", "manager"}
	candidateSeniority = []string{"ceo", "director", "manager", "head"}
	knownBuckets       = []normalize.SizeRange{{Min: 1, Max: 10}, {Min: 11, Max: 50}, {Min: 51, Max: 200}}
)

// DefaultRules returns the rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{DimSector, "sector_substring", 20, sectorSubstring},
		{DimSector, "sector_tech_family", 15, sectorTechFamily},
		{DimSize, "size_exact", 15, sizeExact},
		{DimSize, "size_known_bucket", 12, sizeKnownBucket},
		{DimLocation, "location_overlap", 15, locationOverlap},
		{DimLocation, "location_france_europe", 10, locationFranceEurope},
		{DimTitle, "title_substring", 20, titleSubstring},
		{DimTitle, "title_seniority", 15, titleSeniority},
		{DimEmail, "has_email", 10, hasEmail},
		{DimSocial, "has_social_profile", 5, hasSocialProfile},
	}
}

func sectorSubstring(c model.Candidate, crit model.Criteria) bool {
	industry := lower(c.Organization.Industry)
	if industry == "" {
		return false
	}
	for _, tok := range tokens(crit.Sector) {
		if strings.Contains(industry, tok) {
			return true
		}
	}
	return false
}

func sectorTechFamily(c model.Candidate, crit model.Criteria) bool {
	return containsAny(lower(crit.Sector), techFamily) && containsAny(lower(c.Organization.Industry), techFamily)
}

func sizeExact(c model.Candidate, crit model.Criteria) bool {
	want := lower(crit.CompanySize)
	return want != "" && want == lower(c.Organization.Headcount)
}

func sizeKnownBucket(c model.Candidate, crit model.Criteria) bool {
	want, got := bucket(crit.CompanySize), bucket(c.Organization.Headcount)
	return want >= 0 && want == got
}

func locationOverlap(c model.Candidate, crit model.Criteria) bool {
	want, got := lower(crit.Location), lower(c.Organization.Location)
	if want == "" || got == "" {
		return false
	}
	if strings.Contains(want, got) || strings.Contains(got, want) {
		return true
	}
	return strings.Contains(want, "france") && strings.Contains(got, "france")
}

func locationFranceEurope(c model.Candidate, crit model.Criteria) bool {
	return strings.Contains(lower(crit.Location), "france") &&
		strings.Contains(lower(c.Organization.Location), "europe")
}

func titleSubstring(c model.Candidate, crit model.Criteria) bool {
	title := lower(c.Title)
	if title == "" {
		return false
	}
	for _, tok := range tokens(crit.TargetPositions) {
		if strings.Contains(title, tok) {
			return true
		}
	}
	return false
}

func titleSeniority(c model.Candidate, crit model.Criteria) bool {
	return containsAny(lower(crit.TargetPositions), userSeniority) && containsAny(lower(c.Title), candidateSeniority)
}

func hasEmail(c model.Candidate, _ model.Criteria) bool {
	return strings.TrimSpace(c.Email) != ""
}

func hasSocialProfile(c model.Candidate, _ model.Criteria) bool {
	return strings.TrimSpace(c.LinkedInURL) != ""
}

// bucket returns the index of the recognized headcount bucket raw parses
// to, or -1.
func bucket(raw string) int {
	r := normalize.CompanySize(raw)
	if r == nil {
		return -1
	}
	for i, b := range knownBuckets {
		if *r == b {
			return i
		}
	}
	return -1
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokens(raw string) []string {
	var out []string
	for _, t := range strings.Split(lower(raw), ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
