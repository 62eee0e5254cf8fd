package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store"
)

var errReadOnly = errors.New("write in read-only transaction")

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use. Data is lost on restart, so it is meant
// for tests and throwaway runs.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	accounts     map[string]domain.Account
	transactions []domain.Transaction
	reminders    map[string]domain.Reminder
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: &state{
			accounts:  make(map[string]domain.Account),
			reminders: make(map[string]domain.Reminder),
		},
	}
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{st: s.state, readOnly: true})
}

// Update implements store.Store.
// fn works on a copy of the state which replaces the current one only when
// fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

func (st *state) clone() *state {
	c := &state{
		accounts:     make(map[string]domain.Account, len(st.accounts)),
		transactions: make([]domain.Transaction, len(st.transactions)),
		reminders:    make(map[string]domain.Reminder, len(st.reminders)),
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	copy(c.transactions, st.transactions)
	for k, v := range st.reminders {
		c.reminders[k] = v
	}
	return c
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable(op string) error {
	if t.readOnly {
		return domain.StorageError(op, errReadOnly)
	}
	return nil
}

func (t *tx) ListAccounts() ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(t.st.accounts))
	for _, a := range t.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *tx) GetAccount(key string) (domain.Account, bool, error) {
	a, ok := t.st.accounts[key]
	return a, ok, nil
}

func (t *tx) PutAccount(a domain.Account) error {
	if err := t.writable("PutAccount"); err != nil {
		return err
	}
	t.st.accounts[a.Key()] = a
	return nil
}

func (t *tx) DeleteAccount(key string) error {
	if err := t.writable("DeleteAccount"); err != nil {
		return err
	}
	delete(t.st.accounts, key)
	return nil
}

func (t *tx) ListTransactions() ([]domain.Transaction, error) {
	out := make([]domain.Transaction, len(t.st.transactions))
	copy(out, t.st.transactions)
	return out, nil
}

func (t *tx) AppendTransaction(tr domain.Transaction) error {
	if err := t.writable("AppendTransaction"); err != nil {
		return err
	}
	t.st.transactions = append(t.st.transactions, tr)
	return nil
}

func (t *tx) RemoveTransaction(seq int64) error {
	if err := t.writable("RemoveTransaction"); err != nil {
		return err
	}
	for i, tr := range t.st.transactions {
		if tr.Seq == seq {
			t.st.transactions = append(t.st.transactions[:i:i], t.st.transactions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (t *tx) ClearTransactions() error {
	if err := t.writable("ClearTransactions"); err != nil {
		return err
	}
	t.st.transactions = nil
	return nil
}

func (t *tx) ListReminders() ([]domain.Reminder, error) {
	out := make([]domain.Reminder, 0, len(t.st.reminders))
	for _, r := range t.st.reminders {
		out = append(out, r)
	}
	store.SortReminders(out)
	return out, nil
}

func (t *tx) PutReminder(r domain.Reminder) error {
	if err := t.writable("PutReminder"); err != nil {
		return err
	}
	t.st.reminders[r.ID] = r
	return nil
}

func (t *tx) DeleteReminder(id string) error {
	if err := t.writable("DeleteReminder"); err != nil {
		return err
	}
	delete(t.st.reminders, id)
	return nil
}

// Ensure Store implements store.Store interface.
var _ store.Store = (*Store)(nil)
