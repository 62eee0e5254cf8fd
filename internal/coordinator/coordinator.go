// Package coordinator turns a parsed transaction request into a balance
// change plus a ledger entry, committed together.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/accounts"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/report"
	"github.com/dvloznov/finance-bot/internal/session"
	"github.com/dvloznov/finance-bot/internal/store"
)

// Selections is the part of a conversation session the coordinator needs.
type Selections interface {
	Begin(p session.Pending) session.Pending
	Resolve(token string) (session.Pending, error)
}

// AccountSelection is a fully specified transaction request.
type AccountSelection struct {
	Account    string
	Amount     int64
	Kind       domain.Kind
	Note       string
	Originator string
}

// Confirmation describes a committed transaction.
type Confirmation struct {
	Transaction domain.Transaction
	Account     string
	Balance     int64
	Totals      report.Totals
}

// Disambiguation asks the user to choose among Candidates.
type Disambiguation struct {
	Token      string
	Amount     int64
	Kind       domain.Kind
	Note       string
	Candidates []string
	ExpiresAt  time.Time
}

// Result holds exactly one of Confirmation or Disambiguation.
type Result struct {
	Confirmation   *Confirmation
	Disambiguation *Disambiguation
}

// Coordinator records transactions against accounts.
type Coordinator struct {
	store    store.Store
	accounts *accounts.Registry
	ledger   *ledger.Ledger
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a Coordinator. Account and ledger access go through s.
func New(s store.Store, acc *accounts.Registry, l *ledger.Ledger, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    s,
		accounts: acc,
		ledger:   l,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the time source for transaction timestamps.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// RecordTransaction commits the transaction directly when exactly one
// account exists, or parks it in sess and asks which account to use.
func (c *Coordinator) RecordTransaction(ctx context.Context, sess Selections, amount int64, kind domain.Kind, note, originator string) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("RecordTransaction: amount %d: %w", amount, domain.ErrInvalidAmount)
	}
	if !kind.Valid() {
		return Result{}, fmt.Errorf("RecordTransaction: kind %q: %w", kind, domain.ErrInvalidFormat)
	}

	var (
		conf       *Confirmation
		candidates []string
	)
	err := c.store.Update(ctx, func(tx store.Tx) error {
		all, err := c.accounts.ListIn(tx)
		if err != nil {
			return err
		}
		switch len(all) {
		case 0:
			return domain.ErrNoAccountConfigured
		case 1:
			conf, err = c.commitIn(tx, AccountSelection{
				Account:    all[0].Name,
				Amount:     amount,
				Kind:       kind,
				Note:       note,
				Originator: originator,
			})
			return err
		}
		for _, a := range all {
			candidates = append(candidates, a.Name)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("RecordTransaction: %w", err)
	}

	if conf != nil {
		c.logCommitted(conf, originator)
		return Result{Confirmation: conf}, nil
	}

	p := sess.Begin(session.Pending{
		Amount:     amount,
		Kind:       kind,
		Note:       note,
		Originator: originator,
		Candidates: candidates,
	})
	c.logger.Debug().
		Str("token", p.Token).
		Int("candidates", len(candidates)).
		Msg("Awaiting account selection")

	return Result{Disambiguation: &Disambiguation{
		Token:      p.Token,
		Amount:     p.Amount,
		Kind:       p.Kind,
		Note:       p.Note,
		Candidates: p.Candidates,
		ExpiresAt:  p.ExpiresAt,
	}}, nil
}

// ResumeFromSelection commits a transaction against an explicitly named account.
func (c *Coordinator) ResumeFromSelection(ctx context.Context, sel AccountSelection) (Result, error) {
	if sel.Amount <= 0 {
		return Result{}, fmt.Errorf("ResumeFromSelection: amount %d: %w", sel.Amount, domain.ErrInvalidAmount)
	}

	var conf *Confirmation
	err := c.store.Update(ctx, func(tx store.Tx) error {
		var err error
		conf, err = c.commitIn(tx, sel)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("ResumeFromSelection: %w", err)
	}

	c.logCommitted(conf, sel.Originator)
	return Result{Confirmation: conf}, nil
}

// ResolvePending completes the selection parked in sess under token.
func (c *Coordinator) ResolvePending(ctx context.Context, sess Selections, token, account string) (Result, error) {
	p, err := sess.Resolve(token)
	if err != nil {
		return Result{}, fmt.Errorf("ResolvePending: %w", err)
	}
	return c.ResumeFromSelection(ctx, AccountSelection{
		Account:    account,
		Amount:     p.Amount,
		Kind:       p.Kind,
		Note:       p.Note,
		Originator: p.Originator,
	})
}

// commitIn adjusts the balance, appends the entry and recomputes the
// global totals, all within tx.
func (c *Coordinator) commitIn(tx store.Tx, sel AccountSelection) (*Confirmation, error) {
	acc, err := c.accounts.AdjustIn(tx, sel.Account, sel.Kind.Sign()*sel.Amount)
	if err != nil {
		return nil, err
	}

	t, err := c.ledger.AppendIn(tx, domain.Transaction{
		Amount:    sel.Amount,
		Note:      sel.Note,
		Kind:      sel.Kind,
		Timestamp: c.now(),
		Account:   acc.Name,
	})
	if err != nil {
		return nil, err
	}

	all, err := c.ledger.AllIn(tx)
	if err != nil {
		return nil, err
	}

	return &Confirmation{
		Transaction: t,
		Account:     acc.Name,
		Balance:     acc.Balance,
		Totals:      report.ComputeTotals(all),
	}, nil
}

func (c *Coordinator) logCommitted(conf *Confirmation, originator string) {
	c.logger.Info().
		Str("tx_id", conf.Transaction.ID).
		Str("account", conf.Account).
		Str("kind", string(conf.Transaction.Kind)).
		Int64("amount", conf.Transaction.Amount).
		Int64("balance", conf.Balance).
		Str("originator", originator).
		Msg("Transaction recorded")
}

// DeleteTransaction removes the entry at pos. The account balance is left
// as it is.
func (c *Coordinator) DeleteTransaction(ctx context.Context, pos int) (domain.Transaction, error) {
	t, err := c.ledger.DeleteAt(ctx, pos)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("DeleteTransaction: %w", err)
	}
	c.logger.Info().
		Int("position", pos).
		Str("tx_id", t.ID).
		Str("account", t.Account).
		Msg("Transaction deleted without balance reversal")
	return t, nil
}

// ClearAll empties the ledger and returns the totals it held. Balances are
// left as they are.
func (c *Coordinator) ClearAll(ctx context.Context) (report.Totals, error) {
	before, err := c.ledger.Clear(ctx)
	if err != nil {
		return report.Totals{}, fmt.Errorf("ClearAll: %w", err)
	}
	totals := report.ComputeTotals(before)
	c.logger.Warn().Int("count", totals.Count).Msg("Ledger cleared")
	return totals, nil
}

// ListTransactions returns the ledger in position order.
func (c *Coordinator) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := c.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// Snapshot reads accounts and ledger in one consistent view.
func (c *Coordinator) Snapshot(ctx context.Context) (report.Snapshot, error) {
	var snap report.Snapshot
	err := c.store.View(ctx, func(tx store.Tx) error {
		accs, err := c.accounts.ListIn(tx)
		if err != nil {
			return err
		}
		txs, err := c.ledger.AllIn(tx)
		if err != nil {
			return err
		}
		snap = report.NewSnapshot(accs, txs, c.now())
		return nil
	})
	if err != nil {
		return report.Snapshot{}, fmt.Errorf("Snapshot: %w", err)
	}
	return snap, nil
}
