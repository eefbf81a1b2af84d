package model

import "strings"

// Organization is the company block attached to a prospect.
type Organization struct {
	Name      string `json:"name"`
	Industry  string `json:"industry,omitempty"`
	Headcount string `json:"headcount,omitempty"` // bucket such as "11-50"
	Location  string `json:"location,omitempty"`
}

// Candidate is an unscored prospect returned by the search provider.
type Candidate struct {
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Name         string       `json:"name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Title        string       `json:"title,omitempty"`
	LinkedInURL  string       `json:"linkedin_url,omitempty"`
	Organization Organization `json:"organization"`
}

// SplitName returns first and last name, falling back to splitting Name
// on its first space when the provider left the parts empty.
func (c Candidate) SplitName() (string, string) {
	if c.FirstName != "" || c.LastName != "" {
		return c.FirstName, c.LastName
	}
	name := strings.TrimSpace(c.Name)
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// ScoredCandidate is a Candidate with its fit score and the criteria the
// score was computed against.
type ScoredCandidate struct {
	Candidate
	Score    int      `json:"score"`
	Matched  []string `json:"matched,omitempty"`
	Criteria Criteria `json:"-"`
}
