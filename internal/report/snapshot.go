package report

import (
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
)

// Row is one ledger entry as seen by exporters and the analyser.
type Row struct {
	Position int         `json:"position"`
	ID       string      `json:"id"`
	Date     time.Time   `json:"date"`
	Kind     domain.Kind `json:"kind"`
	Amount   int64       `json:"amount"`
	Note     string      `json:"note"`
	Account  string      `json:"account"`
}

// Day groups rows by calendar date in ledger order.
type Day struct {
	Date string `json:"date"` // 2006-01-02
	Rows []Row  `json:"rows"`
}

// Snapshot is a read-only view of the whole ledger at a point in time.
type Snapshot struct {
	TakenAt  time.Time        `json:"taken_at"`
	Rows     []Row            `json:"rows"`
	Totals   Totals           `json:"totals"`
	Accounts []domain.Account `json:"accounts"`
	Balance  int64            `json:"balance"` // sum of account balances
}

// NewSnapshot builds a Snapshot. The inputs are copied.
func NewSnapshot(accounts []domain.Account, txs []domain.Transaction, now time.Time) Snapshot {
	s := Snapshot{
		TakenAt:  now,
		Rows:     make([]Row, len(txs)),
		Totals:   ComputeTotals(txs),
		Accounts: append([]domain.Account(nil), accounts...),
	}
	for i, tr := range txs {
		s.Rows[i] = Row{
			Position: i + 1,
			ID:       tr.ID,
			Date:     tr.Timestamp,
			Kind:     tr.Kind,
			Amount:   tr.Amount,
			Note:     tr.Note,
			Account:  tr.Account,
		}
	}
	for _, a := range accounts {
		s.Balance = money.SaturatingAdd(s.Balance, a.Balance)
	}
	return s
}

// Empty reports whether the snapshot has no ledger entries.
func (s Snapshot) Empty() bool {
	return len(s.Rows) == 0
}

// Transactions rebuilds the ledger entries in position order.
func (s Snapshot) Transactions() []domain.Transaction {
	out := make([]domain.Transaction, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = domain.Transaction{
			ID:        r.ID,
			Amount:    r.Amount,
			Note:      r.Note,
			Kind:      r.Kind,
			Timestamp: r.Date,
			Account:   r.Account,
		}
	}
	return out
}

// Audit replays the ledger against the snapshot's accounts.
func (s Snapshot) Audit() []Drift {
	return Replay(s.Accounts, s.Transactions())
}

// ByDay groups the rows by date, in order of first appearance.
func (s Snapshot) ByDay() []Day {
	var days []Day
	idx := make(map[string]int)
	for _, r := range s.Rows {
		key := r.Date.Format("2006-01-02")
		i, ok := idx[key]
		if !ok {
			i = len(days)
			idx[key] = i
			days = append(days, Day{Date: key})
		}
		days[i].Rows = append(days[i].Rows, r)
	}
	return days
}
