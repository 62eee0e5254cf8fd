// Package sqlite persists the ledger in a SQLite database via mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store"
)

// Schema is applied on every Open.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    key         TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    balance     INTEGER NOT NULL,
    seq         INTEGER NOT NULL,
    created_at  TEXT NOT NULL,
    baseline    INTEGER NOT NULL,
    baseline_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    seq       INTEGER PRIMARY KEY,
    id        TEXT NOT NULL,
    amount    INTEGER NOT NULL,
    note      TEXT NOT NULL,
    kind      TEXT NOT NULL CHECK (kind IN ('income', 'expense')),
    timestamp TEXT NOT NULL,
    account   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reminders (
    id           TEXT PRIMARY KEY,
    chat_id      INTEGER NOT NULL,
    day_of_month INTEGER NOT NULL,
    amount       INTEGER NOT NULL,
    note         TEXT NOT NULL,
    last_fired   TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL
);
`

var errReadOnly = errors.New("write in read-only transaction")

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
	// SQLite has a single writer; mu keeps our writers from racing for it.
	mu sync.Mutex
}

// Open opens the database at path, enabling WAL mode, and applies Schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.StorageError("sqlite.Open: creating directory", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, domain.StorageError("sqlite.Open", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, domain.StorageError("sqlite.Open: ping", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, domain.StorageError("sqlite.Open: schema", err)
	}

	return &Store{db: db}, nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.transaction(ctx, true, fn)
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transaction(ctx, false, fn)
}

// transaction runs fn within a SQL transaction. If fn returns an error, the
// transaction is rolled back and the error is returned unchanged.
func (s *Store) transaction(ctx context.Context, readOnly bool, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("sqlite: begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			stx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&tx{ctx: ctx, stx: stx, readOnly: readOnly}); err != nil {
		if rbErr := stx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %w)", err, domain.StorageError("sqlite: rollback", rbErr))
		}
		return err
	}

	if readOnly {
		if err := stx.Rollback(); err != nil {
			return domain.StorageError("sqlite: release", err)
		}
		return nil
	}
	if err := stx.Commit(); err != nil {
		return domain.StorageError("sqlite: commit", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return domain.StorageError("sqlite.Close", err)
	}
	return nil
}

type tx struct {
	ctx      context.Context
	stx      *sql.Tx
	readOnly bool
}

func (t *tx) exec(op, query string, args ...any) error {
	if t.readOnly {
		return domain.StorageError(op, errReadOnly)
	}
	if _, err := t.stx.ExecContext(t.ctx, query, args...); err != nil {
		return domain.StorageError(op, err)
	}
	return nil
}

func (t *tx) ListAccounts() ([]domain.Account, error) {
	rows, err := t.stx.QueryContext(t.ctx,
		`SELECT name, balance, seq, created_at, baseline, baseline_at FROM accounts ORDER BY seq`)
	if err != nil {
		return nil, domain.StorageError("ListAccounts", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, domain.StorageError("ListAccounts", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("ListAccounts", err)
	}
	return out, nil
}

func (t *tx) GetAccount(key string) (domain.Account, bool, error) {
	row := t.stx.QueryRowContext(t.ctx,
		`SELECT name, balance, seq, created_at, baseline, baseline_at FROM accounts WHERE key = ?`, key)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, domain.StorageError("GetAccount", err)
	}
	return a, true, nil
}

func (t *tx) PutAccount(a domain.Account) error {
	return t.exec("PutAccount",
		`INSERT INTO accounts (key, name, balance, seq, created_at, baseline, baseline_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   name = excluded.name,
		   balance = excluded.balance,
		   seq = excluded.seq,
		   created_at = excluded.created_at,
		   baseline = excluded.baseline,
		   baseline_at = excluded.baseline_at`,
		a.Key(), a.Name, a.Balance, a.Seq, formatTime(a.CreatedAt), a.Baseline, formatTime(a.BaselineAt))
}

func (t *tx) DeleteAccount(key string) error {
	return t.exec("DeleteAccount", `DELETE FROM accounts WHERE key = ?`, key)
}

func (t *tx) ListTransactions() ([]domain.Transaction, error) {
	rows, err := t.stx.QueryContext(t.ctx,
		`SELECT seq, id, amount, note, kind, timestamp, account FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, domain.StorageError("ListTransactions", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			tr   domain.Transaction
			kind string
			ts   string
		)
		if err := rows.Scan(&tr.Seq, &tr.ID, &tr.Amount, &tr.Note, &kind, &ts, &tr.Account); err != nil {
			return nil, domain.StorageError("ListTransactions", err)
		}
		tr.Kind = domain.Kind(kind)
		if tr.Timestamp, err = parseTime(ts); err != nil {
			return nil, domain.StorageError("ListTransactions", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("ListTransactions", err)
	}
	return out, nil
}

func (t *tx) AppendTransaction(tr domain.Transaction) error {
	return t.exec("AppendTransaction",
		`INSERT INTO transactions (seq, id, amount, note, kind, timestamp, account) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.Seq, tr.ID, tr.Amount, tr.Note, string(tr.Kind), formatTime(tr.Timestamp), tr.Account)
}

func (t *tx) RemoveTransaction(seq int64) error {
	return t.exec("RemoveTransaction", `DELETE FROM transactions WHERE seq = ?`, seq)
}

func (t *tx) ClearTransactions() error {
	return t.exec("ClearTransactions", `DELETE FROM transactions`)
}

func (t *tx) ListReminders() ([]domain.Reminder, error) {
	rows, err := t.stx.QueryContext(t.ctx,
		`SELECT id, chat_id, day_of_month, amount, note, last_fired, created_at FROM reminders ORDER BY created_at, id`)
	if err != nil {
		return nil, domain.StorageError("ListReminders", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		var (
			r       domain.Reminder
			created string
		)
		if err := rows.Scan(&r.ID, &r.ChatID, &r.DayOfMonth, &r.Amount, &r.Note, &r.LastFired, &created); err != nil {
			return nil, domain.StorageError("ListReminders", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, domain.StorageError("ListReminders", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("ListReminders", err)
	}
	return out, nil
}

func (t *tx) PutReminder(r domain.Reminder) error {
	return t.exec("PutReminder",
		`INSERT INTO reminders (id, chat_id, day_of_month, amount, note, last_fired, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   chat_id = excluded.chat_id,
		   day_of_month = excluded.day_of_month,
		   amount = excluded.amount,
		   note = excluded.note,
		   last_fired = excluded.last_fired,
		   created_at = excluded.created_at`,
		r.ID, r.ChatID, r.DayOfMonth, r.Amount, r.Note, r.LastFired, formatTime(r.CreatedAt))
}

func (t *tx) DeleteReminder(id string) error {
	return t.exec("DeleteReminder", `DELETE FROM reminders WHERE id = ?`, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (domain.Account, error) {
	var (
		a                   domain.Account
		created, baselineAt string
	)
	if err := s.Scan(&a.Name, &a.Balance, &a.Seq, &created, &a.Baseline, &baselineAt); err != nil {
		return domain.Account{}, err
	}
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.Account{}, err
	}
	if a.BaselineAt, err = parseTime(baselineAt); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

var _ store.Store = (*Store)(nil)
