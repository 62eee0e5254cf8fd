package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store"
	"github.com/dvloznov/finance-bot/internal/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutAccount(domain.Account{Name: "Cash", Balance: 10, Seq: 1, CreatedAt: time.Now(), BaselineAt: time.Now()}); err != nil {
			return err
		}
		return tx.AppendTransaction(domain.Transaction{ID: "a", Seq: 1, Amount: 10, Kind: domain.KindIncome, Timestamp: time.Now(), Account: "Cash"})
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		acc, ok, err := tx.GetAccount("cash")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(10), acc.Balance)

		txs, err := tx.ListTransactions()
		require.NoError(t, err)
		assert.Len(t, txs, 1)
		return nil
	}))
}

func TestItob_SortsNumerically(t *testing.T) {
	assert.Less(t, string(itob(9)), string(itob(10)))
	assert.Less(t, string(itob(255)), string(itob(256)))
}
