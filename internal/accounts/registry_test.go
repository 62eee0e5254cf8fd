package accounts

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store/memory"
)

func newRegistry() *Registry {
	return NewRegistry(memory.NewStore())
}

func TestRegistry_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	acc, err := r.Create(ctx, "  Ví ", 100_000)
	require.NoError(t, err)
	assert.Equal(t, "Ví", acc.Name)
	assert.Equal(t, int64(100_000), acc.Balance)
	assert.Equal(t, int64(100_000), acc.Baseline)

	for _, name := range []string{"Ví", "ví", "VÍ"} {
		got, ok, err := r.Find(ctx, name)
		require.NoError(t, err)
		require.True(t, ok, name)
		assert.Equal(t, "Ví", got.Name)
	}

	_, ok, err := r.Find(ctx, "Bank")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_CreateErrors(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	_, err := r.Create(ctx, "Cash", 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"duplicate exact", "Cash", domain.ErrDuplicateAccount},
		{"duplicate other case", "CASH", domain.ErrDuplicateAccount},
		{"empty", "   ", domain.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(ctx, tt.input, 1)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegistry_ListInCreationOrder(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	for _, n := range []string{"Zeta", "Alpha", "Momo"} {
		_, err := r.Create(ctx, n, 0)
		require.NoError(t, err)
	}
	_, err := r.Delete(ctx, "alpha")
	require.NoError(t, err)
	_, err = r.Create(ctx, "Beta", 0)
	require.NoError(t, err)

	all, err := r.List(ctx)
	require.NoError(t, err)
	var names []string
	for _, a := range all {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Zeta", "Momo", "Beta"}, names)
}

func TestRegistry_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	_, err := r.Create(ctx, "Cash", 10_000)
	require.NoError(t, err)

	acc, err := r.AdjustBalance(ctx, "cash", -25_000)
	require.NoError(t, err)
	assert.Equal(t, int64(-15_000), acc.Balance)

	_, err = r.AdjustBalance(ctx, "Bank", 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRegistry_AdjustBalanceOutOfRange(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	_, err := r.Create(ctx, "Cash", 1)
	require.NoError(t, err)

	_, err = r.AdjustBalance(ctx, "Cash", math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = r.Create(ctx, "Debt", -2)
	require.NoError(t, err)
	_, err = r.AdjustBalance(ctx, "Debt", math.MinInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	acc, ok, err := r.Find(ctx, "Cash")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), acc.Balance)

	acc, err = r.AdjustBalance(ctx, "Cash", math.MaxInt64-1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), acc.Balance)
}

func TestRegistry_SetBalanceMovesBaseline(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := t0
	r := newRegistry().WithClock(func() time.Time { return now })

	_, err := r.Create(ctx, "Cash", 10_000)
	require.NoError(t, err)

	now = t0.Add(time.Hour)
	old, updated, err := r.SetBalance(ctx, "CASH", 150_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), old)
	assert.Equal(t, int64(150_000), updated)

	acc, _, err := r.Find(ctx, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), acc.Baseline)
	assert.True(t, acc.BaselineAt.Equal(now))
	assert.True(t, acc.CreatedAt.Equal(t0))

	_, _, err = r.SetBalance(ctx, "Bank", 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRegistry_DeleteAndTotal(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	_, err := r.Create(ctx, "Cash", 10_000)
	require.NoError(t, err)
	_, err = r.Create(ctx, "Bank", -3_000)
	require.NoError(t, err)

	total, err := r.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7_000), total)

	deleted, err := r.Delete(ctx, "BANK")
	require.NoError(t, err)
	assert.Equal(t, "Bank", deleted.Name)
	assert.Equal(t, int64(-3_000), deleted.Balance)

	_, err = r.Delete(ctx, "Bank")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	total, err = r.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), total)
}

func TestRegistry_ConcurrentAdjust(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	const initial = 1_000_000
	_, err := r.Create(ctx, "Cash", initial)
	require.NoError(t, err)

	deltas := []int64{5_000, -3_000, 12_000, -7_500, 1, -1, 40_000, -20_000}
	var want int64 = initial

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, d := range deltas {
			want += d
			wg.Add(1)
			go func(d int64) {
				defer wg.Done()
				_, err := r.AdjustBalance(ctx, "cash", d)
				assert.NoError(t, err)
			}(d)
		}
	}
	wg.Wait()

	acc, _, err := r.Find(ctx, "Cash")
	require.NoError(t, err)
	assert.Equal(t, want, acc.Balance)
}
