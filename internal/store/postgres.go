package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/db"
	"github.com/sells-group/leadgen/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	sector     TEXT NOT NULL DEFAULT '',
	position   TEXT NOT NULL DEFAULT '',
	ai_score   INTEGER CHECK (ai_score BETWEEN 0 AND 100),
	status     TEXT NOT NULL DEFAULT 'new',
	source     TEXT NOT NULL DEFAULT 'manual',
	notes      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_user_created ON leads(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_user_status ON leads(user_id, status);

CREATE TABLE IF NOT EXISTS lead_usage (
	account_id     TEXT NOT NULL,
	period         TEXT NOT NULL,
	plan           TEXT NOT NULL,
	leads_allotted INTEGER NOT NULL,
	leads_used     INTEGER NOT NULL DEFAULT 0,
	leads_reserved INTEGER NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account_id, period),
	CHECK (leads_used >= 0 AND leads_reserved >= 0)
);

CREATE TABLE IF NOT EXISTS lead_holds (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	n          INTEGER NOT NULL CHECK (n > 0),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lead_holds_account ON lead_holds(account_id, period, created_at);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool if this store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertLeads writes leads in one transaction with COPY. Either every
// lead is persisted or none is.
func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) ([]model.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}

	now := s.now()
	out := make([]model.Lead, len(leads))
	rows := make([][]any, len(leads))
	for i, l := range leads {
		out[i] = prepareLead(l, now)
		rows[i] = leadValues(out[i])
	}

	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := db.CopyFrom(ctx, tx, "leads", leadColumns, rows)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert %d leads", len(leads))
	}

	zap.L().Debug("postgres: inserted leads", zap.Int("count", len(out)))
	return out, nil
}

// CreateLead inserts a single lead.
func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	l := prepareLead(lead, s.now())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, user_id, first_name, last_name, email, company, sector, position, ai_score, status, source, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		leadValues(l)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &l, nil
}

// GetLead returns the lead if ownerID owns it.
func (s *PostgresStore) GetLead(ctx context.Context, ownerID, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, first_name, last_name, email, company, sector, position, ai_score, status, source, notes, created_at, updated_at
		 FROM leads WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

// ListLeads returns ownerID's leads, newest first.
func (s *PostgresStore) ListLeads(ctx context.Context, ownerID string, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, user_id, first_name, last_name, email, company, sector, position, ai_score, status, source, notes, created_at, updated_at
		FROM leads WHERE user_id = $1`
	args := []any{ownerID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// DeleteLead removes the lead if ownerID owns it.
func (s *PostgresStore) DeleteLead(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

// EnsureUsage creates the usage row for the period, or refreshes its plan
// and allotment after a plan change.
func (s *PostgresStore) EnsureUsage(ctx context.Context, accountID string, plan model.Plan, period string, allotted int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_usage (account_id, period, plan, leads_allotted, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_id, period) DO UPDATE
		 SET plan = EXCLUDED.plan, leads_allotted = EXCLUDED.leads_allotted, updated_at = EXCLUDED.updated_at
		 WHERE lead_usage.plan <> EXCLUDED.plan OR lead_usage.leads_allotted <> EXCLUDED.leads_allotted`,
		accountID, period, string(plan), allotted, s.now(),
	)
	return eris.Wrapf(err, "postgres: ensure usage %s/%s", accountID, period)
}

// ReserveLeads holds h.N leads if the allowance allows it. The ceiling
// check, the increment and the hold insert share one transaction.
func (s *PostgresStore) ReserveLeads(ctx context.Context, h model.Hold) (bool, error) {
	var granted bool
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE lead_usage SET leads_reserved = leads_reserved + $3, updated_at = $4
			 WHERE account_id = $1 AND period = $2 AND leads_used + leads_reserved + $3 <= leads_allotted`,
			h.AccountID, h.Period, h.N, s.now(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO lead_holds (id, account_id, period, n, created_at) VALUES ($1, $2, $3, $4, $5)`,
			h.ID, h.AccountID, h.Period, h.N, h.CreatedAt,
		); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, eris.Wrapf(err, "postgres: reserve leads %s/%s", h.AccountID, h.Period)
	}
	return granted, nil
}

// CommitLeads charges produced leads and closes the hold.
func (s *PostgresStore) CommitLeads(ctx context.Context, h model.Hold, produced int) error {
	return s.closeHold(ctx, h, produced, "commit")
}

// ReleaseLeads closes the hold without charging.
func (s *PostgresStore) ReleaseLeads(ctx context.Context, h model.Hold) error {
	return s.closeHold(ctx, h, 0, "release")
}

// closeHold deletes the hold and charges produced leads. The reserved
// count only drops if the hold was still open.
func (s *PostgresStore) closeHold(ctx context.Context, h model.Hold, produced int, op string) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM lead_holds WHERE id = $1`, h.ID)
		if err != nil {
			return err
		}
		held := 0
		if tag.RowsAffected() == 1 {
			held = h.N
		}

		tag, err = tx.Exec(ctx,
			`UPDATE lead_usage SET leads_used = leads_used + $4, leads_reserved = GREATEST(leads_reserved - $3, 0), updated_at = $5
			 WHERE account_id = $1 AND period = $2`,
			h.AccountID, h.Period, held, produced, s.now(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "usage %s/%s", h.AccountID, h.Period)
		}
		return nil
	})
	return eris.Wrapf(err, "postgres: %s leads %s/%s", op, h.AccountID, h.Period)
}

// ExpireHolds deletes holds created before the cutoff and returns their
// leads to the allowance. It reports how many leads were freed.
func (s *PostgresStore) ExpireHolds(ctx context.Context, accountID, period string, before time.Time) (int, error) {
	var freed int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`WITH expired AS (
				DELETE FROM lead_holds WHERE account_id = $1 AND period = $2 AND created_at < $3 RETURNING n
			 ) SELECT COALESCE(SUM(n), 0) FROM expired`,
			accountID, period, before,
		).Scan(&freed); err != nil {
			return err
		}
		if freed == 0 {
			return nil
		}
		_, err := tx.Exec(ctx,
			`UPDATE lead_usage SET leads_reserved = GREATEST(leads_reserved - $3, 0), updated_at = $4
			 WHERE account_id = $1 AND period = $2`,
			accountID, period, freed, s.now(),
		)
		return err
	})
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: expire holds %s/%s", accountID, period)
	}
	return int(freed), nil
}

// GetUsage reads the usage row for the period.
func (s *PostgresStore) GetUsage(ctx context.Context, accountID, period string) (*model.Usage, error) {
	var u model.Usage
	var plan string
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, period, plan, leads_allotted, leads_used, leads_reserved, updated_at
		 FROM lead_usage WHERE account_id = $1 AND period = $2`,
		accountID, period,
	).Scan(&u.AccountID, &u.Period, &plan, &u.LeadsAllotted, &u.LeadsUsed, &u.LeadsReserved, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "usage %s/%s", accountID, period)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get usage %s/%s", accountID, period)
	}
	u.Plan = model.Plan(plan)
	return &u, nil
}
