// Package normalize canonicalizes free-text targeting criteria into
// comparable tokens. Every function is total: unrecognized input degrades to
// the original text or to "no constraint", never to an error.
package normalize

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen/internal/model"
)

// OpenEndedMax is the headcount ceiling used for "N+" size labels.
const OpenEndedMax = 1_000_000

// Location is a decomposed location. Country is a two-letter code.
type Location struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country"`
}

// CountryOnly reports whether the location names a country without a city.
func (l *Location) CountryOnly() bool {
	return l != nil && l.City == ""
}

// SizeRange is a parsed headcount range, both bounds inclusive.
type SizeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// OpenEnded reports whether the range came from an "N+" label.
func (r SizeRange) OpenEnded() bool {
	return r.Max >= OpenEndedMax
}

// String renders the range in "min-max" or "min+" form.
func (r SizeRange) String() string {
	if r.OpenEnded() {
		return strconv.Itoa(r.Min) + "+"
	}
	return strconv.Itoa(r.Min) + "-" + strconv.Itoa(r.Max)
}

// Criteria is the canonical form of model.Criteria. Nil pointers mean
// "no constraint" for that dimension.
type Criteria struct {
	Sectors   []string   `json:"sectors,omitempty"`
	Location  *Location  `json:"location,omitempty"`
	Size      *SizeRange `json:"size,omitempty"`
	Positions []string   `json:"positions,omitempty"`
}

// Normalizer applies a Vocabulary. It holds no mutable state after
// construction and is safe for concurrent use.
type Normalizer struct {
	sectors   map[string]string
	positions map[string]string
	countries map[string]Country // folded alias or code -> country
	byCode    map[string]Country
	home      string
}

// New builds a Normalizer from v.
func New(v Vocabulary) *Normalizer {
	n := &Normalizer{
		sectors:   buildIndex(v.Sectors),
		positions: buildIndex(v.Positions),
		countries: make(map[string]Country),
		byCode:    make(map[string]Country),
		home:      strings.ToUpper(strings.TrimSpace(v.HomeCountry)),
	}
	for _, c := range v.Countries {
		c.Code = strings.ToUpper(c.Code)
		n.byCode[c.Code] = c
		n.countries[fold(c.Code)] = c
		n.countries[fold(c.Name)] = c
		for _, a := range c.Aliases {
			n.countries[fold(a)] = c
		}
	}
	if n.home == "" {
		n.home = "FR"
	}
	return n
}

// Criteria normalizes every dimension of c.
func (n *Normalizer) Criteria(c model.Criteria) Criteria {
	return Criteria{
		Sectors:   n.Sector(c.Sector),
		Location:  n.Location(c.Location),
		Size:      CompanySize(c.CompanySize),
		Positions: n.Positions(c.TargetPositions),
	}
}

// Sector maps each comma-separated token to the controlled sector
// vocabulary. Unknown tokens pass through trimmed and lower-cased.
func (n *Normalizer) Sector(raw string) []string {
	return mapTokens(strings.ToLower(raw), n.sectors)
}

// Positions maps each comma-separated role to a canonical title. Unknown
// roles pass through trimmed.
func (n *Normalizer) Positions(raw string) []string {
	return mapTokens(raw, n.positions)
}

// Location decomposes raw into city and country code. Empty input yields nil.
func (n *Normalizer) Location(raw string) *Location {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil
	}

	if len(parts) == 1 {
		if c, ok := n.countries[fold(parts[0])]; ok {
			return &Location{Country: c.Code}
		}
		return &Location{City: parts[0], Country: n.home}
	}

	return &Location{City: parts[0], Country: n.countryCode(parts[len(parts)-1])}
}

// Cities returns the enumeration list for a country code.
func (n *Normalizer) Cities(code string) []string {
	return n.byCode[strings.ToUpper(code)].Cities
}

// DisplayLocation renders loc the way the search provider expects it:
// "City, Country Name" or "Country Name".
func (n *Normalizer) DisplayLocation(loc *Location) string {
	if loc == nil {
		return ""
	}
	country := loc.Country
	if c, ok := n.byCode[loc.Country]; ok && c.Name != "" {
		country = c.Name
	}
	if loc.City == "" {
		return country
	}
	return loc.City + ", " + country
}

func (n *Normalizer) countryCode(fragment string) string {
	if c, ok := n.countries[fold(fragment)]; ok {
		return c.Code
	}
	r := []rune(strings.ToUpper(fragment))
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

var (
	rangePattern     = regexp.MustCompile(`(\d+)\s*[-–]\s*(\d+)`)
	openEndedPattern = regexp.MustCompile(`(\d+)\s*\+`)
)

// CompanySize extracts a headcount range from labels such as "11-50",
// "1-10 employés" or "5000+". Unparseable input yields nil.
func CompanySize(raw string) *SizeRange {
	if m := rangePattern.FindStringSubmatch(raw); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo != nil || errHi != nil {
			return nil
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return &SizeRange{Min: lo, Max: hi}
	}
	if m := openEndedPattern.FindStringSubmatch(raw); m != nil {
		lo, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		return &SizeRange{Min: lo, Max: OpenEndedMax}
	}
	return nil
}

func mapTokens(raw string, index map[string]string) []string {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if canon, ok := index[fold(p)]; ok {
			out = append(out, canon)
			continue
		}
		out = append(out, p)
	}
	return out
}

// buildIndex keys the synonym table by folded form and maps every
// canonical value to itself. Chains are collapsed, and a cycle resolves to
// its lexically smallest member, so every result is a fixed point.
func buildIndex(table map[string]string) map[string]string {
	raw := make(map[string]string, len(table)*2)
	for k, v := range table {
		raw[fold(k)] = v
	}
	for _, v := range table {
		if _, ok := raw[fold(v)]; !ok {
			raw[fold(v)] = v
		}
	}

	idx := make(map[string]string, len(raw))
	for k, v := range raw {
		path := []string{v}
		seen := map[string]int{v: 0}
		for {
			next, ok := raw[fold(v)]
			if !ok || next == v {
				break
			}
			if i, dup := seen[next]; dup {
				v = slices.Min(path[i:])
				break
			}
			seen[next] = len(path)
			path = append(path, next)
			v = next
		}
		idx[k] = v
	}
	return idx
}

// splitList splits on commas, trims each part and drops empties.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fold lower-cases, trims and strips diacritics so "Santé" and "sante"
// share a lookup key.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
