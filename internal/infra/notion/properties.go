package notion

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-bot/internal/report"
)

// Database property names.
const (
	PropNote          = "Note"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropKind          = "Kind"
	PropAmount        = "Amount"
	PropAccount       = "Account"
	PropPosition      = "Position"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}
}

// RowProperties maps a ledger row onto the database schema. Expenses are
// stored as negative numbers so Notion sums give the net.
func RowProperties(r report.Row) notionapi.Properties {
	amount := float64(r.Amount)
	if r.Kind.Sign() < 0 {
		amount = -amount
	}
	date := notionapi.Date(r.Date)

	props := notionapi.Properties{
		PropNote:          notionapi.TitleProperty{Title: richText(r.Note)},
		PropTransactionID: notionapi.RichTextProperty{RichText: richText(r.ID)},
		PropDate:          notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		PropKind:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(r.Kind)}},
		PropAmount:        notionapi.NumberProperty{Number: amount},
		PropPosition:      notionapi.NumberProperty{Number: float64(r.Position)},
	}
	if r.Account != "" {
		props[PropAccount] = notionapi.SelectProperty{Select: notionapi.Option{Name: r.Account}}
	}
	return props
}

// transactionID reads the Transaction ID property back from a page.
func transactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}
