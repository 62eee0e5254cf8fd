// Package store defines the durable sink behind the account registry, the
// ledger and reminders. Every backend exposes the three collections through
// a transaction so that a balance change and its ledger entry commit
// together or not at all.
package store

import (
	"context"
	"sort"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// Collection names, shared by all backends.
const (
	CollectionTransactions = "transactions"
	CollectionAccounts     = "accounts"
	CollectionReminders    = "reminders"
)

// Store provides serialised, atomic access to the persisted collections.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction. Writers are serialised.
	// If fn returns an error nothing it did is persisted.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying resources.
	Close() error
}

// Tx is the set of primitive operations available inside a transaction.
// Semantics (uniqueness, positions, not-found errors) live in the
// accounts and ledger packages; Tx only moves records.
type Tx interface {
	// ListAccounts returns all accounts ordered by Seq.
	ListAccounts() ([]domain.Account, error)
	// GetAccount looks an account up by its normalised key.
	GetAccount(key string) (domain.Account, bool, error)
	// PutAccount inserts or replaces the account stored under a.Key().
	PutAccount(a domain.Account) error
	// DeleteAccount removes the account stored under key, if any.
	DeleteAccount(key string) error

	// ListTransactions returns the ledger in append order.
	ListTransactions() ([]domain.Transaction, error)
	// AppendTransaction stores t under t.Seq.
	AppendTransaction(t domain.Transaction) error
	// RemoveTransaction deletes the entry stored under seq.
	RemoveTransaction(seq int64) error
	// ClearTransactions removes every ledger entry.
	ClearTransactions() error

	// ListReminders returns reminders ordered by creation time, then ID.
	ListReminders() ([]domain.Reminder, error)
	// PutReminder inserts or replaces a reminder by ID.
	PutReminder(r domain.Reminder) error
	// DeleteReminder removes a reminder by ID.
	DeleteReminder(id string) error
}

// SortReminders orders rs by creation time, breaking ties by ID.
func SortReminders(rs []domain.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
