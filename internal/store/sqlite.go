package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
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
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_user_created ON leads(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_user_status ON leads(user_id, status);

CREATE TABLE IF NOT EXISTS lead_usage (
	account_id     TEXT NOT NULL,
	period         TEXT NOT NULL,
	plan           TEXT NOT NULL,
	leads_allotted INTEGER NOT NULL,
	leads_used     INTEGER NOT NULL DEFAULT 0,
	leads_reserved INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (account_id, period),
	CHECK (leads_used >= 0 AND leads_reserved >= 0)
);

CREATE TABLE IF NOT EXISTS lead_holds (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	n          INTEGER NOT NULL CHECK (n > 0),
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lead_holds_account ON lead_holds(account_id, period, created_at);
`

// Ping checks that the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertLead = `INSERT INTO leads (id, user_id, first_name, last_name, email, company, sector, position, ai_score, status, source, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqliteSelectLead = `SELECT id, user_id, first_name, last_name, email, company, sector, position, ai_score, status, source, notes, created_at, updated_at FROM leads`

// InsertLeads writes leads in one transaction. Either every lead is
// persisted or none is.
func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) ([]model.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin insert leads")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertLead)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert lead")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now()
	out := make([]model.Lead, len(leads))
	for i, l := range leads {
		out[i] = prepareLead(l, now)
		if _, err := stmt.ExecContext(ctx, leadValues(out[i])...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert lead %d of %d", i+1, len(leads))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit leads")
	}

	zap.L().Debug("sqlite: inserted leads", zap.Int("count", len(out)))
	return out, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	l := prepareLead(lead, s.now())
	if _, err := s.db.ExecContext(ctx, sqliteInsertLead, leadValues(l)...); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, ownerID, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectLead+` WHERE id = ? AND user_id = ?`, id, ownerID)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, ownerID string, filter model.LeadFilter) ([]model.Lead, error) {
	var where strings.Builder
	where.WriteString(` WHERE user_id = ?`)
	args := []any{ownerID}

	if filter.Status != "" {
		where.WriteString(` AND status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		where.WriteString(` AND source = ?`)
		args = append(args, string(filter.Source))
	}

	query := sqliteSelectLead + where.String() + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) EnsureUsage(ctx context.Context, accountID string, plan model.Plan, period string, allotted int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_usage (account_id, period, plan, leads_allotted, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, period) DO UPDATE
		 SET plan = excluded.plan, leads_allotted = excluded.leads_allotted, updated_at = excluded.updated_at
		 WHERE lead_usage.plan <> excluded.plan OR lead_usage.leads_allotted <> excluded.leads_allotted`,
		accountID, period, string(plan), allotted, s.now(),
	)
	return eris.Wrapf(err, "sqlite: ensure usage %s/%s", accountID, period)
}

// ReserveLeads bumps the reserved count under the ceiling and records the
// hold in the same transaction.
func (s *SQLiteStore) ReserveLeads(ctx context.Context, h model.Hold) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin reserve")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE lead_usage SET leads_reserved = leads_reserved + ?, updated_at = ?
		 WHERE account_id = ? AND period = ? AND leads_used + leads_reserved + ? <= leads_allotted`,
		h.N, s.now(), h.AccountID, h.Period, h.N,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: reserve leads %s/%s", h.AccountID, h.Period)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "rows affected")
	}
	if affected != 1 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO lead_holds (id, account_id, period, n, created_at) VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.AccountID, h.Period, h.N, h.CreatedAt.UnixMilli(),
	); err != nil {
		return false, eris.Wrapf(err, "sqlite: insert hold %s", h.ID)
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit reserve")
	}
	return true, nil
}

func (s *SQLiteStore) CommitLeads(ctx context.Context, h model.Hold, produced int) error {
	return s.closeHold(ctx, h, produced, "commit")
}

func (s *SQLiteStore) ReleaseLeads(ctx context.Context, h model.Hold) error {
	return s.closeHold(ctx, h, 0, "release")
}

// closeHold deletes the hold and charges produced leads. The reserved
// count only drops if the hold was still open.
func (s *SQLiteStore) closeHold(ctx context.Context, h model.Hold, produced int, op string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin %s", op)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM lead_holds WHERE id = ?`, h.ID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s hold %s", op, h.ID)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	held := 0
	if deleted == 1 {
		held = h.N
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE lead_usage SET leads_used = leads_used + ?, leads_reserved = MAX(leads_reserved - ?, 0), updated_at = ?
		 WHERE account_id = ? AND period = ?`,
		produced, held, s.now(), h.AccountID, h.Period,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s leads %s/%s", op, h.AccountID, h.Period)
	}
	if err := checkRowsAffected(res, "usage", h.AccountID+"/"+h.Period); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", op)
}

// ExpireHolds deletes holds created before the cutoff and returns their
// leads to the allowance. It reports how many leads were freed.
func (s *SQLiteStore) ExpireHolds(ctx context.Context, accountID, period string, before time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin expire holds")
	}
	defer tx.Rollback() //nolint:errcheck

	cutoff := before.UnixMilli()
	var freed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(n), 0) FROM lead_holds WHERE account_id = ? AND period = ? AND created_at < ?`,
		accountID, period, cutoff,
	).Scan(&freed); err != nil {
		return 0, eris.Wrapf(err, "sqlite: sum stale holds %s/%s", accountID, period)
	}
	if freed == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lead_holds WHERE account_id = ? AND period = ? AND created_at < ?`,
		accountID, period, cutoff,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete stale holds %s/%s", accountID, period)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE lead_usage SET leads_reserved = MAX(leads_reserved - ?, 0), updated_at = ?
		 WHERE account_id = ? AND period = ?`,
		freed, s.now(), accountID, period,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: free stale holds %s/%s", accountID, period)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit expire holds")
	}
	return freed, nil
}

func (s *SQLiteStore) GetUsage(ctx context.Context, accountID, period string) (*model.Usage, error) {
	var u model.Usage
	var plan string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, period, plan, leads_allotted, leads_used, leads_reserved, updated_at
		 FROM lead_usage WHERE account_id = ? AND period = ?`,
		accountID, period,
	).Scan(&u.AccountID, &u.Period, &plan, &u.LeadsAllotted, &u.LeadsUsed, &u.LeadsReserved, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "usage %s/%s", accountID, period)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get usage %s/%s", accountID, period)
	}
	u.Plan = model.Plan(plan)
	return &u, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
