package leadgen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/search"
)

// stubSearcher answers every provider call with respond and counts calls.
type stubSearcher struct {
	mu      sync.Mutex
	calls   []search.Query
	respond func(q search.Query) []model.Candidate
}

func (s *stubSearcher) Search(_ context.Context, q search.Query) ([]model.Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.mu.Unlock()
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(q), nil
}

func (s *stubSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fixedScorer gives every candidate the same score.
type fixedScorer struct{ score int }

func (f fixedScorer) ScoreAll(cands []model.Candidate, crit model.Criteria) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, model.ScoredCandidate{Candidate: c, Score: f.score, Criteria: crit})
	}
	return out
}

type usageKey struct{ account, period string }

// memUsage is an in-memory quota.Store with ceiling and hold semantics.
type memUsage struct {
	mu    sync.Mutex
	rows  map[usageKey]*model.Usage
	holds map[string]model.Hold

	// failCommits fails that many commit attempts; a negative value fails
	// every attempt.
	failCommits int
}

func newMemUsage() *memUsage {
	return &memUsage{rows: make(map[usageKey]*model.Usage), holds: make(map[string]model.Hold)}
}

func (m *memUsage) EnsureUsage(_ context.Context, accountID string, plan model.Plan, period string, allotted int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := usageKey{accountID, period}
	if u, ok := m.rows[k]; ok {
		u.Plan = plan
		u.LeadsAllotted = allotted
		return nil
	}
	m.rows[k] = &model.Usage{AccountID: accountID, Plan: plan, Period: period, LeadsAllotted: allotted}
	return nil
}

func (m *memUsage) ReserveLeads(_ context.Context, h model.Hold) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[usageKey{h.AccountID, h.Period}]
	if !ok {
		return false, errors.New("no usage row")
	}
	if u.LeadsUsed+u.LeadsReserved+h.N > u.LeadsAllotted {
		return false, nil
	}
	u.LeadsReserved += h.N
	m.holds[h.ID] = h
	return true, nil
}

func (m *memUsage) takeHold(id string) int {
	h, ok := m.holds[id]
	if !ok {
		return 0
	}
	delete(m.holds, id)
	return h.N
}

func (m *memUsage) CommitLeads(_ context.Context, h model.Hold, produced int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommits != 0 {
		if m.failCommits > 0 {
			m.failCommits--
		}
		return errors.New("connection refused")
	}
	u := m.rows[usageKey{h.AccountID, h.Period}]
	u.LeadsUsed += produced
	u.LeadsReserved = max(u.LeadsReserved-m.takeHold(h.ID), 0)
	return nil
}

func (m *memUsage) ReleaseLeads(_ context.Context, h model.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.rows[usageKey{h.AccountID, h.Period}]
	u.LeadsReserved = max(u.LeadsReserved-m.takeHold(h.ID), 0)
	return nil
}

func (m *memUsage) ExpireHolds(_ context.Context, accountID, period string, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	freed := 0
	for id, h := range m.holds {
		if h.AccountID == accountID && h.Period == period && h.CreatedAt.Before(before) {
			freed += h.N
			delete(m.holds, id)
		}
	}
	if u, ok := m.rows[usageKey{accountID, period}]; ok {
		u.LeadsReserved = max(u.LeadsReserved-freed, 0)
	}
	return freed, nil
}

func (m *memUsage) setFailCommits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCommits = n
}

func (m *memUsage) GetUsage(_ context.Context, accountID, period string) (*model.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[usageKey{accountID, period}]
	if !ok {
		return nil, errors.New("no usage row")
	}
	cp := *u
	return &cp, nil
}

func (m *memUsage) set(u model.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[usageKey{u.AccountID, u.Period}] = &u
}

func (m *memUsage) get(accountID, period string) model.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[usageKey{accountID, period}]; ok {
		return *u
	}
	return model.Usage{}
}

// memLeads is an atomic LeadWriter.
type memLeads struct {
	mu    sync.Mutex
	leads []model.Lead
	err   error
}

func (m *memLeads) InsertLeads(_ context.Context, leads []model.Lead) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		l.ID = uuid.New().String()
		out = append(out, l)
	}
	m.leads = append(m.leads, out...)
	return out, nil
}

func (m *memLeads) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}
