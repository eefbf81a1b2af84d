// Package store persists leads and per-account lead usage.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// ErrNotFound is returned when a lead or usage row does not exist or is
// not owned by the caller.
var ErrNotFound = eris.New("store: not found")

const defaultListLimit = 100

// Store defines the persistence interface for leads and quota usage.
type Store interface {
	// Leads
	InsertLeads(ctx context.Context, leads []model.Lead) ([]model.Lead, error)
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, ownerID, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, ownerID string, filter model.LeadFilter) ([]model.Lead, error)
	DeleteLead(ctx context.Context, ownerID, id string) error

	// Usage
	EnsureUsage(ctx context.Context, accountID string, plan model.Plan, period string, allotted int) error
	ReserveLeads(ctx context.Context, hold model.Hold) (bool, error)
	CommitLeads(ctx context.Context, hold model.Hold, produced int) error
	ReleaseLeads(ctx context.Context, hold model.Hold) error
	ExpireHolds(ctx context.Context, accountID, period string, before time.Time) (int, error)
	GetUsage(ctx context.Context, accountID, period string) (*model.Usage, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// prepareLead fills server-assigned fields: ID, timestamps and the
// default status.
func prepareLead(l model.Lead, now time.Time) model.Lead {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = model.LeadStatusNew
	}
	if l.Source == "" {
		l.Source = model.LeadSourceManual
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	return l
}

func listLimit(f model.LeadFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

var leadColumns = []string{
	"id", "user_id", "first_name", "last_name", "email", "company", "sector",
	"position", "ai_score", "status", "source", "notes", "created_at", "updated_at",
}

func leadValues(l model.Lead) []any {
	var score any
	if l.Score != nil {
		score = *l.Score
	}
	return []any{
		l.ID, l.OwnerID, l.FirstName, l.LastName, l.Email, l.Company, l.Sector,
		l.Position, score, string(l.Status), string(l.Source), l.Notes, l.CreatedAt, l.UpdatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var score sql.NullInt64
	var status, source string
	err := row.Scan(&l.ID, &l.OwnerID, &l.FirstName, &l.LastName, &l.Email, &l.Company, &l.Sector,
		&l.Position, &score, &status, &source, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		l.Score = &v
	}
	l.Status = model.LeadStatus(status)
	l.Source = model.LeadSource(source)
	return &l, nil
}
