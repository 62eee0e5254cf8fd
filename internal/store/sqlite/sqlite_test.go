package sqlite

import (
	"context"
	"path/filepath"
	"sync"
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
		s, err := Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.PutAccount(domain.Account{Name: "Cash", Seq: 1, CreatedAt: time.Now(), BaselineAt: time.Now()})
	}))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, func(tx store.Tx) error {
				acc, _, err := tx.GetAccount("cash")
				if err != nil {
					return err
				}
				acc.Balance += 1000
				return tx.PutAccount(acc)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		acc, ok, err := tx.GetAccount("cash")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(workers*1000), acc.Balance)
		return nil
	}))
}
