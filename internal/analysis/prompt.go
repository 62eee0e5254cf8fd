package analysis

import (
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
	"github.com/dvloznov/finance-bot/internal/report"
)

// BuildPrompt renders the snapshot as an overview plus a per-day listing,
// followed by the questions the model should answer in Vietnamese.
func BuildPrompt(snap report.Snapshot) string {
	var b strings.Builder

	b.WriteString("Phân tích các giao dịch tài chính sau:\n\n")
	b.WriteString("TỔNG QUAN:\n")
	b.WriteString("- Tổng thu: " + money.Format(snap.Totals.Income) + "\n")
	b.WriteString("- Tổng chi: " + money.Format(snap.Totals.Expense) + "\n")
	b.WriteString("- Số dư: " + money.Format(snap.Totals.Net) + "\n")
	b.WriteString("- Tỷ lệ tiết kiệm: " + report.SavingsRate(snap.Totals).Shift(2).StringFixed(0) + "%\n\n")

	b.WriteString("CHI TIẾT GIAO DỊCH THEO NGÀY:\n")
	for _, d := range snap.ByDay() {
		b.WriteString("\n" + d.Date + ":\n")
		for _, r := range d.Rows {
			label := "Chi"
			if r.Kind == domain.KindIncome {
				label = "Thu"
			}
			b.WriteString("- " + label + ": " + money.Format(r.Amount) + " - " + r.Note + " (" + r.Account + ")\n")
		}
	}

	b.WriteString(questions)
	return b.String()
}

const questions = `
Hãy phân tích và trả lời các câu hỏi sau (trả lời bằng tiếng Việt):

1. Tình hình thu chi:
- Thu nhập và chi tiêu có cân đối không?
- Tỷ lệ thu/chi như thế nào?

2. Các khoản chi tiêu:
- Những khoản chi tiêu lớn nhất?
- Có khoản chi tiêu bất thường không?
- Chi tiêu tập trung vào những mục nào?

3. Xu hướng:
- Xu hướng chi tiêu theo thời gian?
- Có ngày nào chi tiêu nhiều bất thường không?

4. Lời khuyên:
- Cần điều chỉnh gì để cải thiện tình hình tài chính?
- Các gợi ý để tiết kiệm và quản lý chi tiêu tốt hơn?

Trả lời ngắn gọn, súc tích và dễ hiểu. Không dùng Markdown.
`
