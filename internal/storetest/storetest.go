// Package storetest is a conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the whole suite against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AccountsRoundTrip", testAccountsRoundTrip},
		{"AccountsOrderedBySeq", testAccountsOrderedBySeq},
		{"TransactionsAppendOrder", testTransactionsAppendOrder},
		{"RemoveAndClear", testRemoveAndClear},
		{"FailedUpdateRollsBack", testFailedUpdateRollsBack},
		{"ViewIsReadOnly", testViewIsReadOnly},
		{"Reminders", testReminders},
		{"RemindersSameInstant", testRemindersSameInstant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func testAccountsRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	acc := domain.Account{
		Name:       "Cash",
		Balance:    500_000,
		Seq:        1,
		CreatedAt:  base,
		Baseline:   500_000,
		BaselineAt: base,
	}

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.PutAccount(acc)
	}))

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, ok, err := tx.GetAccount("cash")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Cash", got.Name)
		assert.Equal(t, int64(500_000), got.Balance)
		assert.True(t, got.CreatedAt.Equal(base))

		_, ok, err = tx.GetAccount("bank")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	acc.Balance = 450_000
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.PutAccount(acc)
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		all, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(450_000), all[0].Balance)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteAccount("cash")
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		all, err := tx.ListAccounts()
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	}))
}

func testAccountsOrderedBySeq(t *testing.T, s store.Store) {
	ctx := context.Background()
	names := []string{"Zeta", "alpha", "Momo"}

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for i, n := range names {
			if err := tx.PutAccount(domain.Account{Name: n, Seq: int64(i + 1), CreatedAt: base, BaselineAt: base}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		all, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, n := range names {
			assert.Equal(t, n, all[i].Name)
		}
		return nil
	}))
}

func appendN(t *testing.T, s store.Store, n int) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		for i := 1; i <= n; i++ {
			err := tx.AppendTransaction(domain.Transaction{
				ID:        "tx-" + string(rune('a'+i-1)),
				Seq:       int64(i),
				Amount:    int64(i * 1000),
				Note:      "note",
				Kind:      domain.KindExpense,
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Account:   "Cash",
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func listTransactions(t *testing.T, s store.Store) []domain.Transaction {
	t.Helper()
	var out []domain.Transaction
	require.NoError(t, s.View(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.ListTransactions()
		return err
	}))
	return out
}

func testTransactionsAppendOrder(t *testing.T, s store.Store) {
	// Enough entries that lexical ordering of keys would differ from numeric.
	appendN(t, s, 12)

	got := listTransactions(t, s)
	require.Len(t, got, 12)
	for i, tr := range got {
		assert.Equal(t, int64(i+1), tr.Seq)
		assert.Equal(t, int64((i+1)*1000), tr.Amount)
		assert.Equal(t, domain.KindExpense, tr.Kind)
		assert.True(t, tr.Timestamp.Equal(base.Add(time.Duration(i+1)*time.Minute)))
	}
}

func testRemoveAndClear(t *testing.T, s store.Store) {
	ctx := context.Background()
	appendN(t, s, 3)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.RemoveTransaction(2)
	}))
	got := listTransactions(t, s)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.ClearTransactions()
	}))
	assert.Empty(t, listTransactions(t, s))
}

func testFailedUpdateRollsBack(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutAccount(domain.Account{Name: "Cash", Seq: 1, CreatedAt: base, BaselineAt: base}); err != nil {
			return err
		}
		if err := tx.AppendTransaction(domain.Transaction{ID: "x", Seq: 1, Amount: 1, Kind: domain.KindIncome, Timestamp: base, Account: "Cash"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, domain.ErrStorageFailure), "errors from fn must not be reclassified")

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		accs, err := tx.ListAccounts()
		require.NoError(t, err)
		assert.Empty(t, accs)
		txs, err := tx.ListTransactions()
		require.NoError(t, err)
		assert.Empty(t, txs)
		return nil
	}))
}

func testViewIsReadOnly(t *testing.T, s store.Store) {
	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.PutAccount(domain.Account{Name: "Cash", Seq: 1, CreatedAt: base, BaselineAt: base})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}

func testReminders(t *testing.T, s store.Store) {
	ctx := context.Background()
	r1 := domain.Reminder{ID: "r1", ChatID: 42, DayOfMonth: 5, Amount: 100_000, Note: "rent", CreatedAt: base}
	r2 := domain.Reminder{ID: "r2", ChatID: 42, DayOfMonth: 20, Amount: 50_000, Note: "phone", CreatedAt: base.Add(time.Hour)}

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutReminder(r2); err != nil {
			return err
		}
		return tx.PutReminder(r1)
	}))

	r1.LastFired = "2024-03"
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.PutReminder(r1)
	}))

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.ListReminders()
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "r1", got[0].ID)
		assert.Equal(t, "2024-03", got[0].LastFired)
		assert.Equal(t, "r2", got[1].ID)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteReminder("r1")
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.ListReminders()
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r2", got[0].ID)
		return nil
	}))
}

func testRemindersSameInstant(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, id := range []string{"c", "a", "d", "b"} {
			r := domain.Reminder{ID: id, ChatID: 42, DayOfMonth: 1, Amount: 1_000, Note: id, CreatedAt: base}
			if err := tx.PutReminder(r); err != nil {
				return err
			}
		}
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.View(ctx, func(tx store.Tx) error {
			got, err := tx.ListReminders()
			require.NoError(t, err)
			ids := make([]string, len(got))
			for j, r := range got {
				ids[j] = r.ID
			}
			assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
			return nil
		}))
	}
}
