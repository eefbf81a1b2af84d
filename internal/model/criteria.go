package model

import "github.com/rotisserie/eris"

// Criteria is the raw targeting input for one lead-generation request.
// It is never persisted.
type Criteria struct {
	Sector          string `json:"sector"`
	CompanySize     string `json:"companySize"`
	Location        string `json:"location"`
	TargetPositions string `json:"targetPositions,omitempty"`
	Precision       string `json:"precision,omitempty"`
	NumberOfLeads   int    `json:"numberOfLeads"`
}

// Validate checks the fields the pipeline cannot run without.
func (c Criteria) Validate() error {
	if c.NumberOfLeads <= 0 {
		return eris.New("criteria: numberOfLeads must be greater than zero")
	}
	return nil
}
