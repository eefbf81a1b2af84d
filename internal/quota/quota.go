// Package quota enforces per-account monthly lead allowances.
//
// A generation first reserves the requested count under an atomic
// ceiling, then commits only the leads it actually produced. Two
// concurrent generations for the same account can never jointly exceed
// the allotment. Every reservation is a timestamped hold; holds that are
// never closed expire after the guard's TTL.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
)

// ErrQuotaExceeded is returned by Acquire when the remaining allowance is
// smaller than the requested count.
var ErrQuotaExceeded = eris.New("quota: lead allowance exceeded")

// ErrReservationClosed is returned when a reservation is committed or
// released twice.
var ErrReservationClosed = eris.New("quota: reservation already closed")

// DefaultPlans are the monthly lead allotments per plan.
var DefaultPlans = map[model.Plan]int{
	model.PlanFree:    5,
	model.PlanStarter: 100,
	model.PlanPro:     400,
	model.PlanGrowth:  1500,
}

// DefaultHoldTTL is how long an unclosed hold keeps its leads.
const DefaultHoldTTL = 15 * time.Minute

// Store is the persistence the guard needs. ReserveLeads must check the
// ceiling, bump the reserved count and record the hold atomically.
// CommitLeads and ReleaseLeads only return the held count to the allowance
// while the hold still exists; an expired hold has already been returned.
type Store interface {
	EnsureUsage(ctx context.Context, accountID string, plan model.Plan, period string, allotted int) error
	ReserveLeads(ctx context.Context, hold model.Hold) (bool, error)
	CommitLeads(ctx context.Context, hold model.Hold, produced int) error
	ReleaseLeads(ctx context.Context, hold model.Hold) error
	ExpireHolds(ctx context.Context, accountID, period string, before time.Time) (int, error)
	GetUsage(ctx context.Context, accountID, period string) (*model.Usage, error)
}

// Guard checks and records lead consumption.
type Guard struct {
	store   Store
	plans   map[model.Plan]int
	now     func() time.Time
	holdTTL time.Duration
	retry   resilience.RetryConfig
}

// NewGuard creates a guard. A nil or empty plans map uses DefaultPlans.
func NewGuard(store Store, plans map[model.Plan]int) *Guard {
	if len(plans) == 0 {
		plans = DefaultPlans
	}
	return &Guard{
		store:   store,
		plans:   plans,
		now:     time.Now,
		holdTTL: DefaultHoldTTL,
		retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			ShouldRetry:    func(error) bool { return true },
		},
	}
}

// WithClock sets the clock used to derive the billing period and hold age.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// WithHoldTTL sets how long an unclosed hold survives. Non-positive values
// keep the current TTL.
func (g *Guard) WithHoldTTL(ttl time.Duration) *Guard {
	if ttl > 0 {
		g.holdTTL = ttl
	}
	return g
}

// WithCommitRetry sets the retry policy for closing a hold.
func (g *Guard) WithCommitRetry(cfg resilience.RetryConfig) *Guard {
	g.retry = cfg
	return g
}

// Period returns the billing period key for t: the UTC calendar month.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Allotment returns the monthly allowance for plan. Unknown plans get the
// free allowance.
func (g *Guard) Allotment(plan model.Plan) int {
	if n, ok := g.plans[plan]; ok {
		return n
	}
	return g.plans[model.PlanFree]
}

// Acquire reserves n leads for acct in the current period. It returns
// ErrQuotaExceeded, without reserving anything, if n exceeds what remains.
func (g *Guard) Acquire(ctx context.Context, acct model.Account, n int) (*Reservation, error) {
	if n <= 0 {
		return nil, eris.Errorf("quota: invalid reservation size %d", n)
	}
	now := g.now()
	period := Period(now)

	if err := g.store.EnsureUsage(ctx, acct.ID, acct.Plan, period, g.Allotment(acct.Plan)); err != nil {
		return nil, eris.Wrap(err, "quota: ensure usage")
	}
	g.expireHolds(ctx, acct.ID, period, now)

	hold := model.Hold{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		Period:    period,
		N:         n,
		CreatedAt: now.UTC(),
	}
	ok, err := g.store.ReserveLeads(ctx, hold)
	if err != nil {
		return nil, eris.Wrap(err, "quota: reserve")
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	zap.L().Debug("quota: reserved",
		zap.String("account_id", acct.ID),
		zap.String("period", period),
		zap.String("hold_id", hold.ID),
		zap.Int("n", n),
	)
	return &Reservation{store: g.store, hold: hold, retry: g.retry}, nil
}

// Usage returns acct's current-period usage, creating the row if needed.
func (g *Guard) Usage(ctx context.Context, acct model.Account) (*model.Usage, error) {
	now := g.now()
	period := Period(now)
	if err := g.store.EnsureUsage(ctx, acct.ID, acct.Plan, period, g.Allotment(acct.Plan)); err != nil {
		return nil, eris.Wrap(err, "quota: ensure usage")
	}
	g.expireHolds(ctx, acct.ID, period, now)

	u, err := g.store.GetUsage(ctx, acct.ID, period)
	if err != nil {
		return nil, eris.Wrap(err, "quota: get usage")
	}
	return u, nil
}

// expireHolds returns the leads of stale holds to the allowance. A failed
// sweep is retried by the next call and never blocks the caller.
func (g *Guard) expireHolds(ctx context.Context, accountID, period string, now time.Time) {
	freed, err := g.store.ExpireHolds(ctx, accountID, period, now.Add(-g.holdTTL).UTC())
	if err != nil {
		zap.L().Warn("quota: expire holds failed",
			zap.String("account_id", accountID),
			zap.String("period", period),
			zap.Error(err),
		)
		return
	}
	if freed > 0 {
		zap.L().Warn("quota: expired stale holds",
			zap.String("account_id", accountID),
			zap.String("period", period),
			zap.Int("freed", freed),
			zap.Duration("ttl", g.holdTTL),
		)
	}
}

// Reservation is a hold on part of an account's allowance. Exactly one of
// Commit or Release closes it. A reservation that is never closed expires
// after the guard's hold TTL.
type Reservation struct {
	store Store
	hold  model.Hold
	retry resilience.RetryConfig

	mu     sync.Mutex
	closed bool
}

// Size returns the number of leads held.
func (r *Reservation) Size() int { return r.hold.N }

// Commit converts the hold into usage. Only produced leads are charged;
// produced is clamped to [0, Size()]. A failed write is retried per the
// guard's commit policy; if it still fails the hold stays open and
// expires with the TTL.
func (r *Reservation) Commit(ctx context.Context, produced int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrReservationClosed
	}
	produced = max(0, min(produced, r.hold.N))
	_, err := resilience.Do(ctx, r.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.CommitLeads(ctx, r.hold, produced)
	})
	if err != nil {
		return eris.Wrapf(err, "quota: commit hold %s", r.hold.ID)
	}
	r.closed = true
	return nil
}

// Release drops the hold without charging anything.
func (r *Reservation) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrReservationClosed
	}
	_, err := resilience.Do(ctx, r.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.ReleaseLeads(ctx, r.hold)
	})
	if err != nil {
		return eris.Wrapf(err, "quota: release hold %s", r.hold.ID)
	}
	r.closed = true
	return nil
}
