package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store/memory"
)

func seed(t *testing.T, l *Ledger, notes ...string) {
	t.Helper()
	for _, n := range notes {
		_, err := l.Append(context.Background(), domain.Transaction{
			Amount:    1_000,
			Note:      n,
			Kind:      domain.KindExpense,
			Timestamp: time.Now(),
			Account:   "Cash",
		})
		require.NoError(t, err)
	}
}

func notes(t *testing.T, l *Ledger) []string {
	t.Helper()
	all, err := l.All(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(all))
	for _, tr := range all {
		out = append(out, tr.Note)
	}
	return out
}

func TestLedger_AppendAssignsIdentity(t *testing.T) {
	l := New(memory.NewStore())

	first, err := l.Append(context.Background(), domain.Transaction{Amount: 1, Kind: domain.KindIncome, Account: "Cash"})
	require.NoError(t, err)
	second, err := l.Append(context.Background(), domain.Transaction{Amount: 2, Kind: domain.KindExpense, Account: "Cash"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
}

func TestLedger_AppendRejectsBadInput(t *testing.T) {
	l := New(memory.NewStore())

	_, err := l.Append(context.Background(), domain.Transaction{Amount: 0, Kind: domain.KindIncome})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = l.Append(context.Background(), domain.Transaction{Amount: 5, Kind: "transfer"})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	assert.Empty(t, notes(t, l))
}

func TestLedger_DeleteAt(t *testing.T) {
	tests := []struct {
		name    string
		pos     int
		want    []string
		removed string
		wantErr error
	}{
		{"first", 1, []string{"b", "c", "d"}, "a", nil},
		{"middle", 2, []string{"a", "c", "d"}, "b", nil},
		{"last", 4, []string{"a", "b", "c"}, "d", nil},
		{"zero", 0, []string{"a", "b", "c", "d"}, "", domain.ErrIndexOutOfRange},
		{"negative", -1, []string{"a", "b", "c", "d"}, "", domain.ErrIndexOutOfRange},
		{"past end", 5, []string{"a", "b", "c", "d"}, "", domain.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(memory.NewStore())
			seed(t, l, "a", "b", "c", "d")

			removed, err := l.DeleteAt(context.Background(), tt.pos)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.removed, removed.Note)
			}
			assert.Equal(t, tt.want, notes(t, l))
		})
	}
}

func TestLedger_DeleteReindexes(t *testing.T) {
	l := New(memory.NewStore())
	seed(t, l, "a", "b", "c")

	_, err := l.DeleteAt(context.Background(), 1)
	require.NoError(t, err)

	// What was position 2 is now position 1.
	removed, err := l.DeleteAt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.Note)
	assert.Equal(t, []string{"c"}, notes(t, l))

	seed(t, l, "d")
	assert.Equal(t, []string{"c", "d"}, notes(t, l))
}

func TestLedger_Clear(t *testing.T) {
	l := New(memory.NewStore())
	seed(t, l, "a", "b")

	before, err := l.Clear(context.Background())
	require.NoError(t, err)
	assert.Len(t, before, 2)
	assert.Empty(t, notes(t, l))

	before, err = l.Clear(context.Background())
	require.NoError(t, err)
	assert.Empty(t, before)
}
