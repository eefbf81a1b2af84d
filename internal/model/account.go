package model

import "time"

// Plan is a billing tier. Plan state is owned by the billing provider.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanGrowth  Plan = "growth"
)

// Account is the authenticated caller.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Plan  Plan   `json:"plan"`
}

// Usage is an account's lead allowance for one billing period.
type Usage struct {
	AccountID     string    `json:"accountId"`
	Plan          Plan      `json:"plan"`
	Period        string    `json:"period"` // YYYY-MM
	LeadsAllotted int       `json:"leadsAllotted"`
	LeadsUsed     int       `json:"leadsUsed"`
	LeadsReserved int       `json:"leadsReserved"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Remaining returns the allowance not yet used or held by an in-flight
// generation. Never negative.
func (u Usage) Remaining() int {
	r := u.LeadsAllotted - u.LeadsUsed - u.LeadsReserved
	if r < 0 {
		return 0
	}
	return r
}

// Hold is one in-flight reservation against a usage row. Holds older than
// the guard's TTL are expired and their leads returned to the allowance.
type Hold struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Period    string    `json:"period"`
	N         int       `json:"n"`
	CreatedAt time.Time `json:"createdAt"`
}
