package normalize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func newTestNormalizer() *Normalizer {
	return New(DefaultVocabulary())
}

func TestSector(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		in   string
		want []string
	}{
		{"Informatique", []string{"information technology"}},
		{"e-commerce", []string{"ecommerce"}},
		{"ecommerce", []string{"ecommerce"}},
		{"  Technologie  ", []string{"technology"}},
		{"Santé", []string{"healthcare"}},
		{"sante", []string{"healthcare"}},
		{"Tech, SaaS", []string{"technology", "software"}},
		{"Aerospace", []string{"aerospace"}},
		{"tech,,  ,finance", []string{"technology", "financial services"}},
		{"", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Sector(tt.in))
		})
	}
}

func TestPositions(t *testing.T) {
	n := newTestNormalizer()
	assert.Equal(t, []string{"CEO", "CTO"}, n.Positions("ceo, CTO"))
	assert.Equal(t, []string{"Director", "Director"}, n.Positions("Directeur,directrice"))
	assert.Equal(t, []string{"Project Manager"}, n.Positions("Chef de projet"))
	assert.Equal(t, []string{"Head of Growth"}, n.Positions(" Head of Growth "))
	assert.Nil(t, n.Positions(""))
}

func TestLocation(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name string
		in   string
		want *Location
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"only commas", " , ", nil},
		{"bare country", "France", &Location{Country: "FR"}},
		{"bare country lower", "france", &Location{Country: "FR"}},
		{"city and country", "Paris, France", &Location{City: "Paris", Country: "FR"}},
		{"known alias", "Berlin, Allemagne", &Location{City: "Berlin", Country: "DE"}},
		{"unknown country truncated", "Lisbon, portugal", &Location{City: "Lisbon", Country: "PO"}},
		{"bare city defaults home", "Lyon", &Location{City: "Lyon", Country: "FR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Location(tt.in))
		})
	}
}

func TestLocation_CustomHomeCountry(t *testing.T) {
	v := DefaultVocabulary()
	v.HomeCountry = "be"
	n := New(v)
	assert.Equal(t, &Location{City: "Namur", Country: "BE"}, n.Location("Namur"))
}

func TestCompanySize(t *testing.T) {
	tests := []struct {
		in   string
		want *SizeRange
	}{
		{"11-50", &SizeRange{Min: 11, Max: 50}},
		{"1-10 employés", &SizeRange{Min: 1, Max: 10}},
		{"51 – 200", &SizeRange{Min: 51, Max: 200}},
		{"200-51", &SizeRange{Min: 51, Max: 200}},
		{"5000+", &SizeRange{Min: 5000, Max: OpenEndedMax}},
		{"5000+ employés", &SizeRange{Min: 5000, Max: OpenEndedMax}},
		{"large", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CompanySize(tt.in))
		})
	}
}

func TestSizeRangeString(t *testing.T) {
	assert.Equal(t, "11-50", SizeRange{Min: 11, Max: 50}.String())
	assert.Equal(t, "5000+", SizeRange{Min: 5000, Max: OpenEndedMax}.String())
}

func TestDisplayLocation(t *testing.T) {
	n := newTestNormalizer()
	assert.Equal(t, "", n.DisplayLocation(nil))
	assert.Equal(t, "France", n.DisplayLocation(&Location{Country: "FR"}))
	assert.Equal(t, "Paris, France", n.DisplayLocation(&Location{City: "Paris", Country: "FR"}))
	assert.Equal(t, "Lisbon, PO", n.DisplayLocation(&Location{City: "Lisbon", Country: "PO"}))
}

func TestCities(t *testing.T) {
	n := newTestNormalizer()
	cities := n.Cities("fr")
	require.NotEmpty(t, cities)
	assert.Equal(t, "Paris", cities[0])
	assert.Empty(t, n.Cities("ZZ"))
}

func TestCriteria(t *testing.T) {
	n := newTestNormalizer()
	nc := n.Criteria(model.Criteria{
		Sector:          "Technologie",
		CompanySize:     "1-10",
		Location:        "France",
		TargetPositions: "CEO",
		NumberOfLeads:   1,
	})
	assert.Equal(t, []string{"technology"}, nc.Sectors)
	assert.True(t, nc.Location.CountryOnly())
	assert.Equal(t, &SizeRange{Min: 1, Max: 10}, nc.Size)
	assert.Equal(t, []string{"CEO"}, nc.Positions)
}

var totalityInputs = []string{
	"", " ", "\t\n", ",", ",,,", "Technologie", "IT, it, It", "santé, médical",
	"???", "Paris, France, Europe", "5000+", "abc-def", "éèê", "-", "+",
	"chef de projet, Directrice", "日本", strings.Repeat("x,", 200),
}

func TestTotality(t *testing.T) {
	n := newTestNormalizer()
	for _, in := range totalityInputs {
		assert.NotPanics(t, func() {
			n.Sector(in)
			n.Positions(in)
			n.Location(in)
			CompanySize(in)
		}, "input %q", in)
	}
}

func TestIdempotence(t *testing.T) {
	n := newTestNormalizer()
	for _, in := range totalityInputs {
		once := n.Sector(in)
		assert.Equal(t, once, n.Sector(strings.Join(once, ", ")), "sector %q", in)

		pos := n.Positions(in)
		assert.Equal(t, pos, n.Positions(strings.Join(pos, ", ")), "positions %q", in)
	}
}

func TestIdempotence_ChainedSynonyms(t *testing.T) {
	v := DefaultVocabulary()
	v.Sectors["software"] = "technology"
	v.Sectors["loop-a"] = "loop-b"
	v.Sectors["loop-b"] = "loop-a"
	n := New(v)

	for _, in := range []string{"saas", "software", "loop-a", "loop-b"} {
		once := n.Sector(in)
		assert.Equal(t, once, n.Sector(strings.Join(once, ", ")), "sector %q", in)
	}
	assert.Equal(t, []string{"technology"}, n.Sector("saas"))
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	yaml := `
sectors:
  agroalimentaire: food production
positions:
  dg: CEO
home_country: BE
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, "food production", v.Sectors["agroalimentaire"])
	assert.Equal(t, "technology", v.Sectors["tech"])
	assert.Equal(t, "CEO", v.Positions["dg"])
	assert.Equal(t, "BE", v.HomeCountry)
	assert.NotEmpty(t, v.Countries)
}

func TestLoadVocabulary_EmptyPathUsesDefaults(t *testing.T) {
	v, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVocabulary().HomeCountry, v.HomeCountry)
}

func TestLoadVocabulary_Errors(t *testing.T) {
	_, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sectors: [not, a, map"), 0o644))
	_, err = LoadVocabulary(path)
	assert.Error(t, err)
}

func TestIdempotence_ThreeCycle(t *testing.T) {
	v := DefaultVocabulary()
	v.Sectors["alpha"] = "beta"
	v.Sectors["beta"] = "gamma"
	v.Sectors["gamma"] = "alpha"
	n := New(v)

	for _, in := range []string{"alpha", "beta", "gamma"} {
		assert.Equal(t, []string{"alpha"}, n.Sector(in), "sector %q", in)
	}
}
