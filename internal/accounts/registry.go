// Package accounts manages the named balance holders.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
	"github.com/dvloznov/finance-bot/internal/store"
)

// Registry owns account identity and balances. The *In methods operate on
// an open store.Tx so callers can compose them with ledger writes.
type Registry struct {
	store store.Store
	now   func() time.Time
}

// NewRegistry creates a Registry over s.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create adds a new account with an opening balance.
func (r *Registry) Create(ctx context.Context, name string, initial int64) (domain.Account, error) {
	var acc domain.Account
	err := r.store.Update(ctx, func(tx store.Tx) error {
		var err error
		acc, err = r.CreateIn(tx, name, initial)
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("Create: %w", err)
	}
	return acc, nil
}

// CreateIn is Create within tx.
func (r *Registry) CreateIn(tx store.Tx, name string, initial int64) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("empty account name: %w", domain.ErrInvalidFormat)
	}

	if _, ok, err := tx.GetAccount(domain.AccountKey(name)); err != nil {
		return domain.Account{}, err
	} else if ok {
		return domain.Account{}, fmt.Errorf("%q: %w", name, domain.ErrDuplicateAccount)
	}

	all, err := tx.ListAccounts()
	if err != nil {
		return domain.Account{}, err
	}
	var seq int64
	for _, a := range all {
		if a.Seq > seq {
			seq = a.Seq
		}
	}

	now := r.now()
	acc := domain.Account{
		Name:       name,
		Balance:    initial,
		Seq:        seq + 1,
		CreatedAt:  now,
		Baseline:   initial,
		BaselineAt: now,
	}
	if err := tx.PutAccount(acc); err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

// Find looks an account up by name, ignoring case.
func (r *Registry) Find(ctx context.Context, name string) (domain.Account, bool, error) {
	var (
		acc domain.Account
		ok  bool
	)
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		acc, ok, err = r.FindIn(tx, name)
		return err
	})
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("Find: %w", err)
	}
	return acc, ok, nil
}

// FindIn is Find within tx.
func (r *Registry) FindIn(tx store.Tx, name string) (domain.Account, bool, error) {
	return tx.GetAccount(domain.AccountKey(name))
}

// AdjustBalance adds delta to the named account's balance.
func (r *Registry) AdjustBalance(ctx context.Context, name string, delta int64) (domain.Account, error) {
	var acc domain.Account
	err := r.store.Update(ctx, func(tx store.Tx) error {
		var err error
		acc, err = r.AdjustIn(tx, name, delta)
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("AdjustBalance: %w", err)
	}
	return acc, nil
}

// AdjustIn is AdjustBalance within tx. A delta that would push the balance
// past the int64 range fails with domain.ErrInvalidAmount and writes nothing.
func (r *Registry) AdjustIn(tx store.Tx, name string, delta int64) (domain.Account, error) {
	acc, ok, err := r.FindIn(tx, name)
	if err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, fmt.Errorf("%q: %w", name, domain.ErrAccountNotFound)
	}
	balance, ok := money.Add(acc.Balance, delta)
	if !ok {
		return domain.Account{}, fmt.Errorf("%q: balance %d%+d out of range: %w", name, acc.Balance, delta, domain.ErrInvalidAmount)
	}
	acc.Balance = balance
	if err := tx.PutAccount(acc); err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

// SetBalance overwrites the balance and moves the replay baseline to now.
// It returns the balance before and after.
func (r *Registry) SetBalance(ctx context.Context, name string, value int64) (int64, int64, error) {
	var old int64
	err := r.store.Update(ctx, func(tx store.Tx) error {
		acc, ok, err := r.FindIn(tx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%q: %w", name, domain.ErrAccountNotFound)
		}
		old = acc.Balance
		acc.Balance = value
		acc.Baseline = value
		acc.BaselineAt = r.now()
		return tx.PutAccount(acc)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("SetBalance: %w", err)
	}
	return old, value, nil
}

// Delete removes the account and returns it as it was. Ledger entries that
// reference it are kept.
func (r *Registry) Delete(ctx context.Context, name string) (domain.Account, error) {
	var acc domain.Account
	err := r.store.Update(ctx, func(tx store.Tx) error {
		var (
			ok  bool
			err error
		)
		acc, ok, err = r.FindIn(tx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%q: %w", name, domain.ErrAccountNotFound)
		}
		return tx.DeleteAccount(acc.Key())
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("Delete: %w", err)
	}
	return acc, nil
}

// List returns all accounts in creation order.
func (r *Registry) List(ctx context.Context) ([]domain.Account, error) {
	var out []domain.Account
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = r.ListIn(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

// ListIn is List within tx.
func (r *Registry) ListIn(tx store.Tx) ([]domain.Account, error) {
	return tx.ListAccounts()
}

// TotalBalance sums the balances of all accounts.
func (r *Registry) TotalBalance(ctx context.Context) (int64, error) {
	all, err := r.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("TotalBalance: %w", err)
	}
	var total int64
	for _, a := range all {
		total = money.SaturatingAdd(total, a.Balance)
	}
	return total, nil
}
