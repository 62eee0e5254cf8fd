package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-bot/internal/coordinator"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
	"github.com/dvloznov/finance-bot/internal/report"
)

const (
	statsMonths = 3
	statsWeeks  = 2
)

const welcomeText = `Xin chào! Tôi là Bot Quản lý Thu Chi 💰

Cách sử dụng:
1️⃣ Ghi khoản chi (mặc định):
    10k cafe
    1m tien nha
    -10k cafe

2️⃣ Ghi khoản thu (thêm dấu +):
    +10k luong
    +1m thuong

Các lệnh:
📊 /xem - Xem sổ thu chi
📈 /thongke - Xem báo cáo tổng quan
🤔 /phantich - Phân tích dữ liệu tài chính
🔍 /timkiem - Tìm giao dịch (VD: /timkiem cafe)
🕒 /recent - Giao dịch gần đây (VD: /recent 7 expense)
📤 /export - Xuất dữ liệu
❌ /xoa - Xóa giao dịch
🗑️ /xoahet - Xóa tất cả lịch sử

Quản lý tài khoản:
💳 /taikhoan - Xem danh sách tài khoản
➕ /themtk - Thêm tài khoản mới (VD: /themtk Ví 100k)
✏️ /capnhattk - Cập nhật số dư (VD: /capnhattk Ví 150k)
❌ /xoatk - Xóa tài khoản (VD: /xoatk Ví)

Nhắc nhở:
⏰ /remind - Nhắc hằng tháng (VD: /remind 5 3m tien nha)
📋 /reminders - Xem nhắc nhở
🚫 /unremind - Xóa nhắc nhở (VD: /unremind 1)

💡 Lưu ý:
- k = nghìn (10k = 10.000 ₫)
- m = triệu (1m = 1.000.000 ₫)`

func formatMoney(v int64) string {
	return money.Format(v)
}

// formatDate matches the vi-VN short date, e.g. 9/3/2024.
func formatDate(t time.Time) string {
	return t.Format("2/1/2006")
}

func kindLabel(k domain.Kind) string {
	if k == domain.KindIncome {
		return "💰 Thu"
	}
	return "💸 Chi"
}

func confirmationText(c *coordinator.Confirmation) string {
	var b strings.Builder
	b.WriteString("✅ Đã ghi nhận giao dịch:\n")
	fmt.Fprintf(&b, "%s: %s\n", kindLabel(c.Transaction.Kind), formatMoney(c.Transaction.Amount))
	fmt.Fprintf(&b, "📝 Ghi chú: %s\n", c.Transaction.Note)
	fmt.Fprintf(&b, "💳 Tài khoản: %s\n", c.Account)
	fmt.Fprintf(&b, "💵 Số dư tài khoản: %s\n\n", formatMoney(c.Balance))
	writeTotals(&b, c.Totals, "📊 Tổng thu", "📊 Tổng chi", "💎 Còn lại")
	return strings.TrimRight(b.String(), "\n")
}

func writeTotals(b *strings.Builder, t report.Totals, income, expense, net string) {
	fmt.Fprintf(b, "%s: %s\n", income, formatMoney(t.Income))
	fmt.Fprintf(b, "%s: %s\n", expense, formatMoney(t.Expense))
	fmt.Fprintf(b, "%s: %s\n", net, formatMoney(t.Net))
}

func ledgerText(txs []domain.Transaction) string {
	var b strings.Builder
	b.WriteString("📊 SỔ THU CHI\n\n")
	for i, t := range txs {
		fmt.Fprintf(&b, "%d. %s: %s\n📝 %s\n💳 %s\n📅 %s\n\n",
			i+1, kindLabel(t.Kind), formatMoney(t.Amount), t.Note, t.Account, formatDate(t.Timestamp))
	}
	return strings.TrimRight(b.String(), "\n")
}

func deleteListText(txs []domain.Transaction) string {
	var b strings.Builder
	b.WriteString("📝 Danh sách giao dịch:\n\n")
	for i, t := range txs {
		fmt.Fprintf(&b, "%d. %s: %s - %s\n", i+1, formatDate(t.Timestamp), formatMoney(t.Amount), t.Note)
	}
	b.WriteString("\n💡 Để xóa, hãy gửi \"/xoa [số thứ tự]\"\nVí dụ: /xoa 1")
	return b.String()
}

func statsText(txs []domain.Transaction) string {
	totals := report.ComputeTotals(txs)

	var b strings.Builder
	b.WriteString("📊 BÁO CÁO THU CHI\n\n")
	writeTotals(&b, totals, "💰 Tổng thu", "💸 Tổng chi", "💎 Số dư")
	rate := report.SavingsRate(totals).Mul(decimal.NewFromInt(100))
	fmt.Fprintf(&b, "📈 Tỷ lệ tiết kiệm: %s%%\n\n", rate.StringFixed(0))

	b.WriteString("📅 THỐNG KÊ THEO THÁNG\n")
	for i, p := range report.GroupByPeriod(txs, report.Monthly) {
		if i == statsMonths {
			break
		}
		fmt.Fprintf(&b, "\nTháng %s:\n", p.Start.Format("1/2006"))
		writeTotals(&b, p.Totals, "  💰 Thu", "  💸 Chi", "  💎 Còn")
	}

	b.WriteString("\n📆 THỐNG KÊ THEO TUẦN\n")
	for i, p := range report.GroupByPeriod(txs, report.Weekly) {
		if i == statsWeeks {
			break
		}
		fmt.Fprintf(&b, "\n%s - %s:\n", formatDate(p.Start), formatDate(p.End()))
		writeTotals(&b, p.Totals, "  💰 Thu", "  💸 Chi", "  💎 Còn")
	}
	return strings.TrimRight(b.String(), "\n")
}

func clearedText(t report.Totals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Đã xóa tất cả %d giao dịch:\n\n📊 Tổng quan đã xóa:\n", t.Count)
	writeTotals(&b, t, "💰 Tổng thu", "💸 Tổng chi", "💵 Số dư")
	return strings.TrimRight(b.String(), "\n")
}

func accountsText(list []domain.Account) string {
	var (
		b     strings.Builder
		total int64
	)
	b.WriteString("💳 DANH SÁCH TÀI KHOẢN\n\n")
	for i, a := range list {
		fmt.Fprintf(&b, "%d. %s\n   💰 Số dư: %s\n\n", i+1, a.Name, formatMoney(a.Balance))
		total += a.Balance
	}
	fmt.Fprintf(&b, "💵 TỔNG SỐ DƯ: %s", formatMoney(total))
	return b.String()
}

func searchText(keyword string, found []domain.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Kết quả tìm kiếm \"%s\": %d giao dịch\n\n", keyword, len(found))
	for _, t := range found {
		fmt.Fprintf(&b, "• %s %s: %s - %s (%s)\n", formatDate(t.Timestamp), kindLabel(t.Kind), formatMoney(t.Amount), t.Note, t.Account)
	}
	b.WriteString("\n")
	writeTotals(&b, report.ComputeTotals(found), "💰 Tổng thu", "💸 Tổng chi", "💎 Chênh lệch")
	return strings.TrimRight(b.String(), "\n")
}

func windowText(w report.Window) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕒 GIAO DỊCH %d NGÀY GẦN ĐÂY\n\n", w.Days)
	for _, t := range w.Transactions {
		fmt.Fprintf(&b, "• %s %s: %s - %s\n", formatDate(t.Timestamp), kindLabel(t.Kind), formatMoney(t.Amount), t.Note)
	}
	b.WriteString("\n")
	writeTotals(&b, w.Totals, "💰 Tổng thu", "💸 Tổng chi", "💎 Chênh lệch")

	names := make([]string, 0, len(w.ByAccount))
	for name := range w.ByAccount {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("\n💳 Theo tài khoản:\n")
	for _, name := range names {
		t := w.ByAccount[name]
		fmt.Fprintf(&b, "  %s: +%s / -%s\n", name, formatMoney(t.Income), formatMoney(t.Expense))
	}
	return strings.TrimRight(b.String(), "\n")
}

func remindersText(list []domain.Reminder) string {
	var b strings.Builder
	b.WriteString("⏰ DANH SÁCH NHẮC NHỞ\n\n")
	for i, r := range list {
		fmt.Fprintf(&b, "%d. Ngày %d: %s - %s\n", i+1, r.DayOfMonth, r.Note, formatMoney(r.Amount))
	}
	b.WriteString("\n💡 Để xóa, hãy gửi \"/unremind [số thứ tự]\"")
	return b.String()
}
