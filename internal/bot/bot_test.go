package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/accounts"
	"github.com/dvloznov/finance-bot/internal/analysis"
	mock_analysis "github.com/dvloznov/finance-bot/internal/analysis/mocks"
	"github.com/dvloznov/finance-bot/internal/coordinator"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/reminder"
	"github.com/dvloznov/finance-bot/internal/session"
	"github.com/dvloznov/finance-bot/internal/store"
	"github.com/dvloznov/finance-bot/internal/store/memory"
)

var now = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type harness struct {
	h        *Handler
	accounts *accounts.Registry
	req      Request
}

func newHarness(t *testing.T, s store.Store) *harness {
	t.Helper()
	if s == nil {
		s = memory.NewStore()
	}
	acc := accounts.NewRegistry(s).WithClock(func() time.Time { return now.Add(-time.Hour) })
	coord := coordinator.New(s, acc, ledger.New(s), zerolog.Nop()).WithClock(clock)
	h := New(coord, acc, session.NewRegistry(time.Minute), zerolog.Nop()).WithClock(clock)
	return &harness{h: h, accounts: acc, req: Request{ChatID: 100, UserID: 7, Originator: "phi"}}
}

func (hs *harness) say(text string) Reply {
	return hs.h.HandleText(context.Background(), hs.req, text)
}

func (hs *harness) press(data string) Reply {
	return hs.h.HandleCallback(context.Background(), hs.req, data)
}

func (hs *harness) balance(t *testing.T, name string) int64 {
	t.Helper()
	a, ok, err := hs.accounts.Find(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok)
	return a.Balance
}

func TestHandler_StartAndChatter(t *testing.T) {
	hs := newHarness(t, nil)

	assert.Contains(t, hs.say("/start").Text, "Xin chào")
	assert.Contains(t, hs.say("/help@finance_bot").Text, "/themtk")
	assert.Empty(t, hs.say("hello there").Text)
	assert.Empty(t, hs.say("/nosuchcommand").Text)
}

func TestHandler_NoAccount(t *testing.T) {
	hs := newHarness(t, nil)
	assert.Contains(t, hs.say("10k cafe").Text, "/themtk")
}

func TestHandler_SingleAccountFlow(t *testing.T) {
	hs := newHarness(t, nil)

	assert.Contains(t, hs.say("/themtk Ví 100k").Text, "100.000 ₫")

	reply := hs.say("10k cafe")
	assert.Contains(t, reply.Text, "💸 Chi: 10.000 ₫")
	assert.Contains(t, reply.Text, "Số dư tài khoản: 90.000 ₫")
	assert.Empty(t, reply.Choices)

	reply = hs.say("+1m luong")
	assert.Contains(t, reply.Text, "💰 Thu: 1.000.000 ₫")
	assert.Contains(t, reply.Text, "💎 Còn lại: 990.000 ₫")
	assert.Equal(t, int64(1_090_000), hs.balance(t, "ví"))
}

func TestHandler_Disambiguation(t *testing.T) {
	hs := newHarness(t, nil)
	hs.say("/themtk Ví 100k")
	hs.say("/themtk Bank 1m")

	reply := hs.say("50k lunch")
	require.Len(t, reply.Choices, 2)
	assert.Equal(t, "Bank (1.000.000 ₫)", reply.Choices[1][0].Label)
	data := reply.Choices[1][0].Data
	assert.True(t, strings.HasPrefix(data, "sel:"))
	assert.LessOrEqual(t, len(data), 64)

	confirm := hs.press(data)
	assert.True(t, confirm.Edit)
	assert.Contains(t, confirm.Text, "💳 Tài khoản: Bank")
	assert.Equal(t, int64(950_000), hs.balance(t, "bank"))
	assert.Equal(t, int64(100_000), hs.balance(t, "ví"))

	// The token is single use.
	again := hs.press(data)
	assert.Contains(t, again.Text, "hết hạn")
	assert.Equal(t, int64(950_000), hs.balance(t, "bank"))

	assert.Empty(t, hs.press("garbage").Text)
}

func TestHandler_DisambiguationLastRequestWins(t *testing.T) {
	hs := newHarness(t, nil)
	hs.say("/themtk Ví 100k")
	hs.say("/themtk Bank 1m")

	first := hs.say("50k lunch")
	second := hs.say("20k taxi")

	assert.Contains(t, hs.press(first.Choices[0][0].Data).Text, "hết hạn")
	assert.Contains(t, hs.press(second.Choices[0][0].Data).Text, "20.000 ₫")
	assert.Equal(t, int64(80_000), hs.balance(t, "ví"))
}

func TestHandler_Cooldown(t *testing.T) {
	hs := newHarness(t, nil)
	hs.h.WithCooldown(session.NewCooldown(2 * time.Second).WithClock(clock))
	hs.say("/themtk Ví 100k")

	assert.NotEmpty(t, hs.say("10k cafe").Text)
	assert.Empty(t, hs.say("10k cafe").Text)
	assert.Equal(t, int64(90_000), hs.balance(t, "ví"))
}

func TestHandler_InvalidInput(t *testing.T) {
	hs := newHarness(t, nil)
	hs.say("/themtk Ví 100k")

	assert.Contains(t, hs.say("0 cafe").Text, "Số tiền không hợp lệ")
	assert.Contains(t, hs.say("10x cafe").Text, "Số tiền không hợp lệ")
	assert.Contains(t, hs.say("/themtk").Text, "/themtk Ví 100k")
	assert.Contains(t, hs.say("/themtk ví 5k").Text, "đã tồn tại")
	assert.Contains(t, hs.say("/capnhattk Bank 5k").Text, "Không tìm thấy")
	assert.Contains(t, hs.say("/xoatk Bank").Text, "Không tìm thấy")
}

func TestHandler_Accounts(t *testing.T) {
	hs := newHarness(t, nil)
	assert.Contains(t, hs.say("/taikhoan").Text, "Chưa có tài khoản")

	hs.say("/themtk Ví 100k")
	hs.say("/themtk Bank 1m")

	list := hs.say("/taikhoan").Text
	assert.Contains(t, list, "1. Ví")
	assert.Contains(t, list, "TỔNG SỐ DƯ: 1.100.000 ₫")

	upd := hs.say("/capnhattk VÍ 150k").Text
	assert.Contains(t, upd, "Số dư cũ: 100.000 ₫")
	assert.Contains(t, upd, "Số dư mới: 150.000 ₫")

	assert.Contains(t, hs.say("/xoatk bank").Text, "Đã xóa tài khoản \"Bank\"")
}

func TestHandler_DeleteTransaction(t *testing.T) {
	hs := newHarness(t, nil)
	assert.Contains(t, hs.say("/xoa").Text, "Không có giao dịch")

	hs.say("/themtk Ví 100k")
	hs.say("10k a")
	hs.say("20k b")

	list := hs.say("/xoa").Text
	assert.Contains(t, list, "1. 9/3/2024: 10.000 ₫ - a")
	assert.Contains(t, list, "/xoa 1")

	assert.Contains(t, hs.say("/xoa 5").Text, "Số thứ tự không hợp lệ")
	assert.Contains(t, hs.say("/xoa 1").Text, "10.000 ₫ - a")
	assert.Contains(t, hs.say("/xem").Text, "1. 💸 Chi: 20.000 ₫")

	// Balance is not reversed.
	assert.Equal(t, int64(70_000), hs.balance(t, "ví"))
}

func TestHandler_ClearAll(t *testing.T) {
	hs := newHarness(t, nil)
	hs.say("/themtk Ví 100k")
	hs.say("10k a")
	hs.say("+30k b")

	ask := hs.say("/xoahet")
	assert.Contains(t, ask.Text, "2 giao dịch")
	require.Len(t, ask.Choices, 1)
	require.Len(t, ask.Choices[0], 2)

	cancel := hs.press(ask.Choices[0][1].Data)
	assert.True(t, cancel.Edit)
	assert.Contains(t, cancel.Text, "Đã hủy")

	done := hs.press(ask.Choices[0][0].Data)
	assert.True(t, done.Edit)
	assert.Contains(t, done.Text, "Đã xóa tất cả 2 giao dịch")
	assert.Contains(t, done.Text, "💵 Số dư: 20.000 ₫")

	assert.Contains(t, hs.say("/xem").Text, "Chưa có giao dịch")
	assert.Contains(t, hs.say("/xoahet").Text, "Không có giao dịch")
}

func TestHandler_Reports(t *testing.T) {
	hs := newHarness(t, nil)
	assert.Contains(t, hs.say("/thongke").Text, "Chưa có giao dịch")

	hs.say("/themtk Ví 100k")
	hs.say("+100k luong")
	hs.say("25k cafe sua")

	stats := hs.say("/thongke").Text
	assert.Contains(t, stats, "BÁO CÁO THU CHI")
	assert.Contains(t, stats, "Tháng 3/2024")
	assert.Contains(t, stats, "Tỷ lệ tiết kiệm: 75%")

	found := hs.say("/timkiem CAFE").Text
	assert.Contains(t, found, "1 giao dịch")
	assert.Contains(t, hs.say("/timkiem pho").Text, "Không tìm thấy")

	recent := hs.say("/recent 7 income").Text
	assert.Contains(t, recent, "100.000 ₫ - luong")
	assert.NotContains(t, recent, "cafe")
}

func TestHandler_Analyze(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	hs := newHarness(t, nil)
	assert.Contains(t, hs.say("/phantich").Text, "chưa được cấu hình")

	a := mock_analysis.NewMockAnalyzer(ctrl)
	hs.h.WithAnalyzer(a)

	a.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return("", analysis.ErrNothingToAnalyze)
	assert.Contains(t, hs.say("/phantich").Text, "để phân tích")

	a.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return("Chi tiêu ổn định.", nil)
	assert.Equal(t, "📊 PHÂN TÍCH TÀI CHÍNH\n\nChi tiêu ổn định.", hs.say("/analyze").Text)

	a.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return("", errors.New("rate limited"))
	assert.Equal(t, msgGeneric, hs.say("/analyze").Text)
}

type fakePublisher struct {
	published []*jobs.ExportJob
	err       error
}

func (f *fakePublisher) PublishExport(ctx context.Context, job *jobs.ExportJob) error {
	if f.err != nil {
		return f.err
	}
	job.JobID = "job-42"
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestHandler_Export(t *testing.T) {
	hs := newHarness(t, nil)
	assert.Contains(t, hs.say("/export").Text, "chưa được cấu hình")

	pub := &fakePublisher{}
	hs.h.WithExports(pub)

	reply := hs.say("/export")
	assert.Contains(t, reply.Text, "job-42")
	require.Len(t, pub.published, 1)
	assert.Equal(t, int64(100), pub.published[0].ChatID)
	assert.Equal(t, "phi", pub.published[0].RequestedBy)

	pub.err = errors.New("queue is closed")
	assert.Equal(t, msgGeneric, hs.say("/export").Text)
}

func TestHandler_Reminders(t *testing.T) {
	s := memory.NewStore()
	hs := newHarness(t, s)
	hs.h.WithReminders(reminder.NewScheduler(s, nil, zerolog.Nop()).WithClock(clock))

	assert.Contains(t, hs.say("/reminders").Text, "Chưa có nhắc nhở")
	assert.Contains(t, hs.say("/remind 15 3m tien nha").Text, "ngày 15 hằng tháng")
	assert.Contains(t, hs.say("/remind 40 3m x").Text, "/remind 5 3m tien nha")
	assert.Contains(t, hs.say("/reminders").Text, "1. Ngày 15: tien nha - 3.000.000 ₫")
	assert.Contains(t, hs.say("/unremind 2").Text, "Số thứ tự không hợp lệ")
	assert.Contains(t, hs.say("/unremind 1").Text, "Đã xóa nhắc nhở")
}

type brokenStore struct{ *memory.Store }

func (b *brokenStore) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return domain.StorageError("View", errors.New("disk I/O error"))
}

func TestHandler_StorageFailureIsGeneric(t *testing.T) {
	hs := newHarness(t, &brokenStore{Store: memory.NewStore()})
	assert.Equal(t, msgGeneric, hs.say("/xem").Text)
}
