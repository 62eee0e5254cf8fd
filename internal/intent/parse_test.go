package intent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
)

func intPtr(n int) *int { return &n }

func kindPtr(k domain.Kind) *domain.Kind { return &k }

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Intent
	}{
		{"expense", "10k cafe", Intent{Kind: NewTransaction, RawAmount: "10k", Amount: 10_000, TxKind: domain.KindExpense, Note: "cafe"}},
		{"explicit expense", "-10k cafe sua da", Intent{Kind: NewTransaction, RawAmount: "-10k", Amount: 10_000, TxKind: domain.KindExpense, Note: "cafe sua da"}},
		{"income", "+1m luong", Intent{Kind: NewTransaction, RawAmount: "+1m", Amount: 1_000_000, TxKind: domain.KindIncome, Note: "luong"}},
		{"chatter", "hello there", Intent{Kind: Unknown}},
		{"empty", "   ", Intent{Kind: Unknown}},
		{"start", "/start", Intent{Kind: Start}},
		{"list vi", "/xem", Intent{Kind: ListLedger}},
		{"stats with bot name", "/thongke@finance_bot", Intent{Kind: Stats}},
		{"analyze mixed case", "/phanTich", Intent{Kind: Analyze}},
		{"delete list", "/xoa", Intent{Kind: DeleteTransaction}},
		{"delete position", "/xoa 3", Intent{Kind: DeleteTransaction, Position: intPtr(3)}},
		{"clear", "/xoahet", Intent{Kind: ClearAll}},
		{"accounts", "/taikhoan", Intent{Kind: ListAccounts}},
		{"create account", "/themtk Ví 100k", Intent{Kind: CreateAccount, Account: "Ví", RawAmount: "100k", Amount: 100_000}},
		{"create multiword", "/themtk Tiet kiem -5k", Intent{Kind: CreateAccount, Account: "Tiet kiem", RawAmount: "-5k", Amount: -5_000}},
		{"create zero", "/addaccount Cash 0", Intent{Kind: CreateAccount, Account: "Cash", RawAmount: "0", Amount: 0}},
		{"update account", "/capnhattk Ví 150k", Intent{Kind: UpdateAccount, Account: "Ví", RawAmount: "150k", Amount: 150_000}},
		{"delete account", "/xoatk Tiet kiem", Intent{Kind: DeleteAccount, Account: "Tiet kiem"}},
		{"search", "/search Cafe sua", Intent{Kind: Search, Keyword: "Cafe sua"}},
		{"recent default", "/recent", Intent{Kind: Recent, Days: 7}},
		{"recent filtered", "/recent 30 income", Intent{Kind: Recent, Days: 30, KindFilter: kindPtr(domain.KindIncome)}},
		{"recent vi kind", "/recent chi", Intent{Kind: Recent, Days: 7, KindFilter: kindPtr(domain.KindExpense)}},
		{"export", "/export", Intent{Kind: Export}},
		{"remind", "/remind 5 3m tien nha", Intent{Kind: AddReminder, Day: 5, RawAmount: "3m", Amount: 3_000_000, Note: "tien nha"}},
		{"reminders", "/reminders", Intent{Kind: ListReminders}},
		{"unremind", "/unremind 2", Intent{Kind: DeleteReminder, Position: intPtr(2)}},
		{"unknown command", "/frobnicate", Intent{Kind: Unknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"zero amount", "0 cafe", domain.ErrInvalidAmount},
		{"decimal amount", "1.5k cafe", domain.ErrInvalidFormat},
		{"amount without note", "10k", domain.ErrInvalidFormat},
		{"bad position", "/xoa abc", domain.ErrInvalidFormat},
		{"create without balance", "/themtk Ví", domain.ErrInvalidFormat},
		{"create bad balance", "/themtk Ví abc", domain.ErrInvalidFormat},
		{"delete account without name", "/xoatk", domain.ErrInvalidFormat},
		{"search without keyword", "/search", domain.ErrInvalidFormat},
		{"recent bad kind", "/recent 7 transfer", domain.ErrInvalidFormat},
		{"recent zero days", "/recent 0", domain.ErrInvalidFormat},
		{"remind day too late", "/remind 31 1m rent", domain.ErrInvalidFormat},
		{"remind missing note", "/remind 5 1m", domain.ErrInvalidFormat},
		{"remind zero", "/remind 5 0 rent", domain.ErrInvalidAmount},
		{"unremind without position", "/unremind", domain.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			ue, ok := AsUsage(err)
			require.True(t, ok)
			assert.NotEmpty(t, ue.Usage)
		})
	}
}

func TestParseCallback(t *testing.T) {
	token := "0123456789abcdef0123456789abcdef"

	got, err := ParseCallback(SelectCallback(token, 2))
	require.NoError(t, err)
	assert.Equal(t, Intent{Kind: SelectAccount, Token: token, Choice: 2}, got)
	assert.LessOrEqual(t, len(SelectCallback(token, 99)), 64)

	got, err = ParseCallback(CallbackClearYes)
	require.NoError(t, err)
	assert.Equal(t, Intent{Kind: ClearAll, Confirmed: true}, got)

	got, err = ParseCallback(CallbackClearNo)
	require.NoError(t, err)
	assert.Equal(t, CancelClear, got.Kind)

	for _, bad := range []string{"", "sel", "sel::1", "sel:abc:x", "sel:abc:-1", "select_account:Cash:1000:expense:x"} {
		_, err := ParseCallback(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidFormat, bad)
	}
}
