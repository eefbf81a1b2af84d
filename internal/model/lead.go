package model

import "time"

// LeadStatus tracks where a lead sits in the outreach funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// LeadSource is the provenance tag recording which acquisition path
// produced a lead.
type LeadSource string

const (
	LeadSourceApollo LeadSource = "apollo"
	LeadSourceManual LeadSource = "manual"
)

// Lead is the persisted output of the acquisition pipeline (or manual entry).
type Lead struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"userId"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Company   string     `json:"company"`
	Sector    string     `json:"sector,omitempty"`
	Position  string     `json:"position,omitempty"`
	Score     *int       `json:"score,omitempty"`
	Status    LeadStatus `json:"status"`
	Source    LeadSource `json:"source"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// LeadFilter narrows a lead listing for one owner.
type LeadFilter struct {
	Status LeadStatus `json:"status,omitempty"`
	Source LeadSource `json:"source,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}
