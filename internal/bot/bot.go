// Package bot dispatches parsed intents to the ledger and renders replies.
// It knows nothing about the chat transport.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/accounts"
	"github.com/dvloznov/finance-bot/internal/analysis"
	"github.com/dvloznov/finance-bot/internal/coordinator"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/intent"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/reminder"
	"github.com/dvloznov/finance-bot/internal/report"
	"github.com/dvloznov/finance-bot/internal/session"
)

// Choice is one inline button.
type Choice struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is what the transport sends back. An empty Text means stay silent.
type Reply struct {
	Text string `json:"text,omitempty"`
	// Choices are button rows.
	Choices [][]Choice `json:"choices,omitempty"`
	// Edit asks the transport to replace the message the button was on.
	Edit bool `json:"edit,omitempty"`
}

// Request identifies who is talking.
type Request struct {
	ChatID     int64  `json:"chat_id"`
	UserID     int64  `json:"user_id"`
	Originator string `json:"originator,omitempty"`
}

// Handler turns intents into ledger operations.
type Handler struct {
	coord     *coordinator.Coordinator
	accounts  *accounts.Registry
	sessions  *session.Registry
	cooldown  *session.Cooldown
	analyzer  analysis.Analyzer
	exports   jobs.Publisher
	reminders *reminder.Scheduler
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates a Handler. Optional features are attached with the With methods.
func New(coord *coordinator.Coordinator, acc *accounts.Registry, sessions *session.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		coord:    coord,
		accounts: acc,
		sessions: sessions,
		now:      time.Now,
		logger:   logger,
	}
}

// WithCooldown rate-limits new transactions per user.
func (h *Handler) WithCooldown(c *session.Cooldown) *Handler {
	h.cooldown = c
	return h
}

// WithAnalyzer enables /analyze.
func (h *Handler) WithAnalyzer(a analysis.Analyzer) *Handler {
	h.analyzer = a
	return h
}

// WithExports enables /export.
func (h *Handler) WithExports(p jobs.Publisher) *Handler {
	h.exports = p
	return h
}

// WithReminders enables the reminder commands.
func (h *Handler) WithReminders(s *reminder.Scheduler) *Handler {
	h.reminders = s
	return h
}

// WithClock replaces the time source used by /recent.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// HandleText parses a chat message and dispatches it.
func (h *Handler) HandleText(ctx context.Context, req Request, text string) Reply {
	in, err := intent.Parse(text)
	if err != nil {
		return h.fail(req, intent.Unknown, err)
	}
	return h.Dispatch(ctx, req, in)
}

// HandleCallback parses a button payload and dispatches it.
func (h *Handler) HandleCallback(ctx context.Context, req Request, data string) Reply {
	in, err := intent.ParseCallback(data)
	if err != nil {
		h.logger.Debug().Str("data", data).Msg("Ignoring unknown callback")
		return Reply{}
	}
	return h.Dispatch(ctx, req, in)
}

// Dispatch runs one intent. Every error becomes a user-facing message.
func (h *Handler) Dispatch(ctx context.Context, req Request, in intent.Intent) Reply {
	if in.Originator == "" {
		in.Originator = req.Originator
	}
	ctx = logger.WithContext(ctx, logger.ForChat(h.logger, req.ChatID, in.Originator))

	var (
		reply Reply
		err   error
	)
	switch in.Kind {
	case intent.Unknown:
		return Reply{}
	case intent.Start:
		reply = Reply{Text: welcomeText}
	case intent.NewTransaction:
		if h.cooldown != nil && !h.cooldown.Allow(req.UserID) {
			return Reply{}
		}
		reply, err = h.newTransaction(ctx, req, in)
	case intent.SelectAccount:
		reply, err = h.selectAccount(ctx, req, in)
	case intent.ListLedger:
		reply, err = h.listLedger(ctx)
	case intent.Stats:
		reply, err = h.stats(ctx)
	case intent.Analyze:
		reply, err = h.analyze(ctx)
	case intent.DeleteTransaction:
		reply, err = h.deleteTransaction(ctx, in)
	case intent.ClearAll:
		reply, err = h.clearAll(ctx, in)
	case intent.CancelClear:
		reply = Reply{Text: "❌ Đã hủy xóa lịch sử.", Edit: true}
	case intent.ListAccounts:
		reply, err = h.listAccounts(ctx)
	case intent.CreateAccount:
		reply, err = h.createAccount(ctx, in)
	case intent.UpdateAccount:
		reply, err = h.updateAccount(ctx, in)
	case intent.DeleteAccount:
		reply, err = h.deleteAccount(ctx, in)
	case intent.Search:
		reply, err = h.search(ctx, in)
	case intent.Recent:
		reply, err = h.recent(ctx, in)
	case intent.Export:
		reply, err = h.export(ctx, req, in)
	case intent.AddReminder:
		reply, err = h.addReminder(ctx, req, in)
	case intent.ListReminders:
		reply, err = h.listReminders(ctx, req)
	case intent.DeleteReminder:
		reply, err = h.deleteReminder(ctx, req, in)
	default:
		err = fmt.Errorf("Dispatch: unhandled intent %q", in.Kind)
	}

	if err != nil {
		return h.fail(req, in.Kind, err)
	}
	return reply
}

func (h *Handler) newTransaction(ctx context.Context, req Request, in intent.Intent) (Reply, error) {
	res, err := h.coord.RecordTransaction(ctx, h.sessions.Get(req.ChatID), in.Amount, in.TxKind, in.Note, in.Originator)
	if err != nil {
		return Reply{}, err
	}
	if res.Confirmation != nil {
		return Reply{Text: confirmationText(res.Confirmation)}, nil
	}

	balances := map[string]int64{}
	if list, err := h.accounts.List(ctx); err == nil {
		for _, a := range list {
			balances[a.Name] = a.Balance
		}
	}

	d := res.Disambiguation
	rows := make([][]Choice, len(d.Candidates))
	for i, name := range d.Candidates {
		label := name
		if b, ok := balances[name]; ok {
			label = fmt.Sprintf("%s (%s)", name, formatMoney(b))
		}
		rows[i] = []Choice{{Label: label, Data: intent.SelectCallback(d.Token, i)}}
	}
	return Reply{Text: "📝 Chọn tài khoản để ghi nhận giao dịch:", Choices: rows}, nil
}

func (h *Handler) selectAccount(ctx context.Context, req Request, in intent.Intent) (Reply, error) {
	sess := h.sessions.Get(req.ChatID)
	p, ok := sess.Peek()
	if !ok || p.Token != in.Token {
		return Reply{}, domain.ErrSelectionExpired
	}
	if in.Choice < 0 || in.Choice >= len(p.Candidates) {
		return Reply{}, fmt.Errorf("choice %d of %d: %w", in.Choice, len(p.Candidates), domain.ErrIndexOutOfRange)
	}

	res, err := h.coord.ResolvePending(ctx, sess, in.Token, p.Candidates[in.Choice])
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: confirmationText(res.Confirmation), Edit: true}, nil
}

func (h *Handler) listLedger(ctx context.Context) (Reply, error) {
	txs, err := h.coord.ListTransactions(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(txs) == 0 {
		return Reply{Text: "📝 Chưa có giao dịch nào được ghi nhận"}, nil
	}
	return Reply{Text: ledgerText(txs)}, nil
}

func (h *Handler) stats(ctx context.Context) (Reply, error) {
	txs, err := h.coord.ListTransactions(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(txs) == 0 {
		return Reply{Text: "❌ Chưa có giao dịch nào."}, nil
	}
	return Reply{Text: statsText(txs)}, nil
}

func (h *Handler) analyze(ctx context.Context) (Reply, error) {
	if h.analyzer == nil {
		return Reply{Text: "❌ Chức năng phân tích chưa được cấu hình."}, nil
	}
	snap, err := h.coord.Snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}
	text, err := h.analyzer.Analyze(ctx, snap)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: "📊 PHÂN TÍCH TÀI CHÍNH\n\n" + text}, nil
}

func (h *Handler) deleteTransaction(ctx context.Context, in intent.Intent) (Reply, error) {
	if in.Position == nil {
		txs, err := h.coord.ListTransactions(ctx)
		if err != nil {
			return Reply{}, err
		}
		if len(txs) == 0 {
			return Reply{Text: "❌ Không có giao dịch nào để xóa."}, nil
		}
		return Reply{Text: deleteListText(txs)}, nil
	}

	t, err := h.coord.DeleteTransaction(ctx, *in.Position)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("✅ Đã xóa giao dịch:\n%s: %s - %s", formatDate(t.Timestamp), formatMoney(t.Amount), t.Note)}, nil
}

func (h *Handler) clearAll(ctx context.Context, in intent.Intent) (Reply, error) {
	if !in.Confirmed {
		txs, err := h.coord.ListTransactions(ctx)
		if err != nil {
			return Reply{}, err
		}
		if len(txs) == 0 {
			return Reply{Text: "❌ Không có giao dịch nào để xóa."}, nil
		}
		return Reply{
			Text: fmt.Sprintf("⚠️ Bạn có chắc chắn muốn xóa tất cả %d giao dịch không?", len(txs)),
			Choices: [][]Choice{{
				{Label: "✅ Có", Data: intent.CallbackClearYes},
				{Label: "❌ Không", Data: intent.CallbackClearNo},
			}},
		}, nil
	}

	totals, err := h.coord.ClearAll(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: clearedText(totals), Edit: true}, nil
}

func (h *Handler) listAccounts(ctx context.Context) (Reply, error) {
	list, err := h.accounts.List(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Text: "❌ Chưa có tài khoản nào."}, nil
	}
	return Reply{Text: accountsText(list)}, nil
}

func (h *Handler) createAccount(ctx context.Context, in intent.Intent) (Reply, error) {
	a, err := h.accounts.Create(ctx, in.Account, in.Amount)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("✅ Đã thêm tài khoản \"%s\" với số dư %s", a.Name, formatMoney(a.Balance))}, nil
}

func (h *Handler) updateAccount(ctx context.Context, in intent.Intent) (Reply, error) {
	a, found, err := h.accounts.Find(ctx, in.Account)
	if err != nil {
		return Reply{}, err
	}
	if !found {
		return Reply{}, domain.ErrAccountNotFound
	}
	oldBalance, newBalance, err := h.accounts.SetBalance(ctx, a.Name, in.Amount)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("✅ Đã cập nhật số dư tài khoản \"%s\":\nSố dư cũ: %s\nSố dư mới: %s",
		a.Name, formatMoney(oldBalance), formatMoney(newBalance))}, nil
}

func (h *Handler) deleteAccount(ctx context.Context, in intent.Intent) (Reply, error) {
	a, err := h.accounts.Delete(ctx, in.Account)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("✅ Đã xóa tài khoản \"%s\" với số dư %s", a.Name, formatMoney(a.Balance))}, nil
}

func (h *Handler) search(ctx context.Context, in intent.Intent) (Reply, error) {
	txs, err := h.coord.ListTransactions(ctx)
	if err != nil {
		return Reply{}, err
	}
	found := report.Search(txs, in.Keyword)
	if len(found) == 0 {
		return Reply{Text: fmt.Sprintf("🔍 Không tìm thấy giao dịch nào với từ khóa \"%s\"", in.Keyword)}, nil
	}
	return Reply{Text: searchText(in.Keyword, found)}, nil
}

func (h *Handler) recent(ctx context.Context, in intent.Intent) (Reply, error) {
	txs, err := h.coord.ListTransactions(ctx)
	if err != nil {
		return Reply{}, err
	}
	days := in.Days
	if days <= 0 {
		days = intent.DefaultRecentDays
	}
	w := report.FilterByWindow(txs, h.now(), days, in.KindFilter)
	if len(w.Transactions) == 0 {
		return Reply{Text: fmt.Sprintf("📝 Không có giao dịch nào trong %d ngày gần đây", days)}, nil
	}
	return Reply{Text: windowText(w)}, nil
}

func (h *Handler) export(ctx context.Context, req Request, in intent.Intent) (Reply, error) {
	if h.exports == nil {
		return Reply{Text: "❌ Chức năng xuất dữ liệu chưa được cấu hình."}, nil
	}
	job := &jobs.ExportJob{ChatID: req.ChatID, RequestedBy: in.Originator}
	if err := h.exports.PublishExport(ctx, job); err != nil {
		return Reply{}, fmt.Errorf("export: publish: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.JobID).Msg("Export queued")
	return Reply{Text: fmt.Sprintf("⏳ Đang xuất dữ liệu... Bạn sẽ nhận được thông báo khi hoàn tất.\nMã: %s", job.JobID)}, nil
}

func (h *Handler) addReminder(ctx context.Context, req Request, in intent.Intent) (Reply, error) {
	if h.reminders == nil {
		return Reply{Text: "❌ Chức năng nhắc nhở chưa được cấu hình."}, nil
	}
	r, err := h.reminders.Add(ctx, req.ChatID, in.Day, in.Amount, in.Note)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("✅ Đã đặt nhắc nhở ngày %d hằng tháng: %s - %s", r.DayOfMonth, r.Note, formatMoney(r.Amount))}, nil
}

func (h *Handler) listReminders(ctx context.Context, req Request) (Reply, error) {
	if h.reminders == nil {
		return Reply{Text: "❌ Chức năng nhắc nhở chưa được cấu hình."}, nil
	}
	list, err := h.reminders.List(ctx, req.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Text: "⏰ Chưa có nhắc nhở nào.\nVí dụ: /remind 5 3m tien nha"}, nil
	}
	return Reply{Text: remindersText(list)}, nil
}

func (h *Handler) deleteReminder(ctx context.Context, req Request, in intent.Intent) (Reply, error) {
	if h.reminders == nil {
		return Reply{Text: "❌ Chức năng nhắc nhở chưa được cấu hình."}, nil
	}
	if in.Position == nil {
		return Reply{}, &intent.UsageError{Command: "/unremind", Usage: "/unremind 1", Err: domain.ErrInvalidFormat}
	}
	r, err := h.reminders.Delete(ctx, req.ChatID, *in.Position)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("✅ Đã xóa nhắc nhở: %s - %s", r.Note, formatMoney(r.Amount))}, nil
}
