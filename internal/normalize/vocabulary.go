package normalize

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Country describes one country the location normalizer recognizes.
type Country struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Cities  []string `yaml:"cities"` // enumeration order for city fallback
}

// Vocabulary holds the controlled vocabularies and lookup tables. These are
// product data; DefaultVocabulary ships the stock tables and LoadVocabulary
// overlays a YAML file on top of them.
type Vocabulary struct {
	Sectors     map[string]string `yaml:"sectors"`
	Positions   map[string]string `yaml:"positions"`
	Countries   []Country         `yaml:"countries"`
	HomeCountry string            `yaml:"home_country"`
}

// DefaultVocabulary returns the built-in tables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Sectors: map[string]string{
			"technologie":  "technology",
			"tech":         "technology",
			"informatique": "information technology",
			"it":           "information technology",
			"software":     "software",
			"saas":         "software",
			"e-commerce":   "ecommerce",
			"ecommerce":    "ecommerce",
			"finance":      "financial services",
			"banque":       "financial services",
			"assurance":    "financial services",
			"santé":        "healthcare",
			"médical":      "healthcare",
			"éducation":    "education",
			"immobilier":   "real estate",
			"consulting":   "consulting",
			"conseil":      "consulting",
			"marketing":    "marketing",
			"publicité":    "advertising",
			"logistique":   "logistics",
			"transport":    "transportation",
			"industrie":    "manufacturing",
			"production":   "manufacturing",
		},
		Positions: map[string]string{
			"ceo":            "CEO",
			"directeur":      "Director",
			"directrice":     "Director",
			"manager":        "Manager",
			"chef de projet": "Project Manager",
			"cto":            "CTO",
			"cfo":            "CFO",
			"cmo":            "CMO",
			"cso":            "CSO",
		},
		Countries: []Country{
			{
				Code:    "FR",
				Name:    "France",
				Aliases: []string{"france", "fr"},
				Cities: []string{
					"Paris", "Lyon", "Marseille", "Lille", "Toulouse",
					"Bordeaux", "Nantes", "Nice", "Montpellier", "Strasbourg",
					"Rennes", "Reims", "Saint-Étienne", "Toulon", "Angers",
					"Grenoble", "Dijon", "Nîmes", "Saint-Denis", "Villeurbanne",
				},
			},
			{
				Code:    "BE",
				Name:    "Belgium",
				Aliases: []string{"belgique", "belgium"},
				Cities:  []string{"Brussels", "Antwerp", "Ghent", "Liège", "Charleroi"},
			},
			{
				Code:    "CH",
				Name:    "Switzerland",
				Aliases: []string{"suisse", "switzerland"},
				Cities:  []string{"Zurich", "Geneva", "Basel", "Lausanne", "Bern"},
			},
			{
				Code:    "CA",
				Name:    "Canada",
				Aliases: []string{"canada"},
				Cities:  []string{"Toronto", "Montreal", "Vancouver", "Calgary", "Ottawa"},
			},
			{
				Code:    "DE",
				Name:    "Germany",
				Aliases: []string{"allemagne", "germany", "deutschland"},
				Cities:  []string{"Berlin", "Munich", "Hamburg", "Frankfurt", "Cologne"},
			},
			{
				Code:    "GB",
				Name:    "United Kingdom",
				Aliases: []string{"royaume-uni", "united kingdom", "uk", "england"},
				Cities:  []string{"London", "Manchester", "Birmingham", "Edinburgh", "Bristol"},
			},
			{
				Code:    "US",
				Name:    "United States",
				Aliases: []string{"états-unis", "united states", "usa"},
				Cities:  []string{"New York", "San Francisco", "Los Angeles", "Chicago", "Boston"},
			},
		},
		HomeCountry: "FR",
	}
}

// LoadVocabulary reads a YAML vocabulary file and overlays it on the
// defaults. Map entries are merged; a non-empty countries list replaces
// the default list.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return v, eris.Wrapf(err, "normalize: read vocabulary %s", path)
	}

	var overlay Vocabulary
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return v, eris.Wrapf(err, "normalize: parse vocabulary %s", path)
	}

	for k, val := range overlay.Sectors {
		v.Sectors[k] = val
	}
	for k, val := range overlay.Positions {
		v.Positions[k] = val
	}
	if len(overlay.Countries) > 0 {
		v.Countries = overlay.Countries
	}
	if overlay.HomeCountry != "" {
		v.HomeCountry = overlay.HomeCountry
	}
	return v, nil
}
