package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sells-group/leadgen/internal/model"
)

type usageKey struct{ account, period string }

// memStore is an in-memory Store with the same ceiling and hold semantics
// as the SQL backends.
type memStore struct {
	mu    sync.Mutex
	rows  map[usageKey]*model.Usage
	holds map[string]model.Hold

	reserveErr error
	commitErr  error
	expireErr  error
	// failCommits fails that many commit attempts before commitErr applies.
	failCommits    int
	commitAttempts int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[usageKey]*model.Usage), holds: make(map[string]model.Hold)}
}

func (m *memStore) EnsureUsage(_ context.Context, accountID string, plan model.Plan, period string, allotted int) error {
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

func (m *memStore) ReserveLeads(_ context.Context, h model.Hold) (bool, error) {
	if m.reserveErr != nil {
		return false, m.reserveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[usageKey{h.AccountID, h.Period}]
	if !ok {
		return false, nil
	}
	if u.LeadsUsed+u.LeadsReserved+h.N > u.LeadsAllotted {
		return false, nil
	}
	u.LeadsReserved += h.N
	m.holds[h.ID] = h
	return true, nil
}

// takeHold removes the hold and returns its size, or 0 if it already expired.
func (m *memStore) takeHold(id string) int {
	h, ok := m.holds[id]
	if !ok {
		return 0
	}
	delete(m.holds, id)
	return h.N
}

func (m *memStore) CommitLeads(_ context.Context, h model.Hold, produced int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitAttempts++
	if m.failCommits > 0 {
		m.failCommits--
		return errors.New("connection reset by peer")
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	u, ok := m.rows[usageKey{h.AccountID, h.Period}]
	if !ok {
		return errors.New("no usage row")
	}
	u.LeadsUsed += produced
	u.LeadsReserved = max(u.LeadsReserved-m.takeHold(h.ID), 0)
	return nil
}

func (m *memStore) ReleaseLeads(_ context.Context, h model.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[usageKey{h.AccountID, h.Period}]
	if !ok {
		return errors.New("no usage row")
	}
	u.LeadsReserved = max(u.LeadsReserved-m.takeHold(h.ID), 0)
	return nil
}

func (m *memStore) ExpireHolds(_ context.Context, accountID, period string, before time.Time) (int, error) {
	if m.expireErr != nil {
		return 0, m.expireErr
	}
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

func (m *memStore) GetUsage(_ context.Context, accountID, period string) (*model.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[usageKey{accountID, period}]
	if !ok {
		return nil, errors.New("no usage row")
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) set(accountID, period string, used int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[usageKey{accountID, period}].LeadsUsed = used
}

func (m *memStore) openHolds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holds)
}
