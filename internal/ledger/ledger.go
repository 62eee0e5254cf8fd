// Package ledger is the append-only list of recorded transactions.
// Entries are addressed by their 1-based position, which shifts when an
// earlier entry is deleted.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store"
)

// Ledger reads and writes transactions through a store.Store.
type Ledger struct {
	store store.Store
}

// New creates a Ledger over s.
func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Append stores t at the end of the ledger and returns it with ID and Seq set.
func (l *Ledger) Append(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	var out domain.Transaction
	err := l.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = l.AppendIn(tx, t)
		return err
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Append: %w", err)
	}
	return out, nil
}

// AppendIn is Append within tx.
func (l *Ledger) AppendIn(tx store.Tx, t domain.Transaction) (domain.Transaction, error) {
	if t.Amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("amount %d: %w", t.Amount, domain.ErrInvalidAmount)
	}
	if !t.Kind.Valid() {
		return domain.Transaction{}, fmt.Errorf("kind %q: %w", t.Kind, domain.ErrInvalidFormat)
	}

	all, err := tx.ListTransactions()
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Seq = 1
	if n := len(all); n > 0 {
		t.Seq = all[n-1].Seq + 1
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	if err := tx.AppendTransaction(t); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// All returns every transaction in append order.
func (l *Ledger) All(ctx context.Context) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = l.AllIn(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("All: %w", err)
	}
	return out, nil
}

// AllIn is All within tx.
func (l *Ledger) AllIn(tx store.Tx) ([]domain.Transaction, error) {
	return tx.ListTransactions()
}

// DeleteAt removes the entry at the 1-based position pos and returns it.
// Out of range positions leave the ledger unchanged.
func (l *Ledger) DeleteAt(ctx context.Context, pos int) (domain.Transaction, error) {
	var removed domain.Transaction
	err := l.store.Update(ctx, func(tx store.Tx) error {
		all, err := tx.ListTransactions()
		if err != nil {
			return err
		}
		if pos < 1 || pos > len(all) {
			return fmt.Errorf("position %d of %d: %w", pos, len(all), domain.ErrIndexOutOfRange)
		}
		removed = all[pos-1]
		return tx.RemoveTransaction(removed.Seq)
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("DeleteAt: %w", err)
	}
	return removed, nil
}

// Clear removes every entry and returns what was there.
func (l *Ledger) Clear(ctx context.Context) ([]domain.Transaction, error) {
	var before []domain.Transaction
	err := l.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if before, err = tx.ListTransactions(); err != nil {
			return err
		}
		return tx.ClearTransactions()
	})
	if err != nil {
		return nil, fmt.Errorf("Clear: %w", err)
	}
	return before, nil
}
