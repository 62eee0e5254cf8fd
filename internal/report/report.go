// Package report derives read-only summaries from ledger snapshots.
// Nothing here touches storage; callers pass in what they read.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
)

// Totals is the income/expense summary of a set of transactions.
type Totals struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
	Count   int   `json:"count"`
}

// add saturates at the int64 bounds instead of wrapping.
func (t *Totals) add(tr domain.Transaction) {
	if tr.Kind == domain.KindIncome {
		t.Income = money.SaturatingAdd(t.Income, tr.Amount)
	} else {
		t.Expense = money.SaturatingAdd(t.Expense, tr.Amount)
	}
	t.Net = money.SaturatingAdd(t.Income, -t.Expense)
	t.Count++
}

// ComputeTotals sums income and expense over txs.
func ComputeTotals(txs []domain.Transaction) Totals {
	var t Totals
	for _, tr := range txs {
		t.add(tr)
	}
	return t
}

// SavingsRate is Net/Income rounded to two decimals. Zero income yields zero.
func SavingsRate(t Totals) decimal.Decimal {
	if t.Income == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(t.Net).Div(decimal.NewFromInt(t.Income)).Round(2)
}

// Period selects the bucket width for GroupByPeriod.
type Period int

const (
	Monthly Period = iota
	Weekly
)

// PeriodStats aggregates one calendar bucket.
type PeriodStats struct {
	Key   string    `json:"key"`   // "2024-3" or "2024-W11"
	Start time.Time `json:"start"` // timestamp of the first transaction seen in the bucket
	Totals
	year, index int
}

// End is the last day of a weekly range, counted from Start.
func (p PeriodStats) End() time.Time {
	return p.Start.AddDate(0, 0, 6)
}

// GroupByPeriod buckets txs by month or week, newest bucket first.
func GroupByPeriod(txs []domain.Transaction, period Period) []PeriodStats {
	byKey := make(map[string]*PeriodStats)
	var order []*PeriodStats

	for _, tr := range txs {
		year, idx, key := periodKey(tr.Timestamp, period)
		ps, ok := byKey[key]
		if !ok {
			ps = &PeriodStats{Key: key, Start: tr.Timestamp, year: year, index: idx}
			byKey[key] = ps
			order = append(order, ps)
		}
		ps.add(tr)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year > order[j].year
		}
		return order[i].index > order[j].index
	})

	out := make([]PeriodStats, len(order))
	for i, ps := range order {
		out[i] = *ps
	}
	return out
}

func periodKey(ts time.Time, period Period) (int, int, string) {
	year := ts.Year()
	if period == Weekly {
		w := WeekNumber(ts)
		return year, w, fmt.Sprintf("%d-W%d", year, w)
	}
	m := int(ts.Month())
	return year, m, fmt.Sprintf("%d-%d", year, m)
}

// WeekNumber counts weeks from the Sunday-aligned week containing January 1:
// ceil((elapsed days since Jan 1 + weekday of Jan 1 + 1) / 7), where elapsed
// days include the time-of-day fraction. Any instant after midnight on the
// last weekday of a week therefore belongs to the next one.
func WeekNumber(ts time.Time) int {
	const (
		day  = 24 * time.Hour
		week = 7 * day
	)
	jan1 := time.Date(ts.Year(), time.January, 1, 0, 0, 0, 0, ts.Location())
	n := ts.Sub(jan1) + time.Duration(int(jan1.Weekday())+1)*day
	w := int(n / week)
	if n%week != 0 {
		w++
	}
	return w
}

// Search returns transactions whose note or account contains keyword,
// ignoring case. An empty keyword matches nothing.
func Search(txs []domain.Transaction, keyword string) []domain.Transaction {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	var out []domain.Transaction
	for _, tr := range txs {
		if strings.Contains(strings.ToLower(tr.Note), kw) ||
			strings.Contains(strings.ToLower(tr.Account), kw) {
			out = append(out, tr)
		}
	}
	return out
}

// Window is the result of FilterByWindow.
type Window struct {
	Days         int                  `json:"days"`
	Transactions []domain.Transaction `json:"transactions"`
	Totals       Totals               `json:"totals"`
	ByAccount    map[string]Totals    `json:"by_account"`
}

// FilterByWindow keeps transactions from the last days days (counted back
// from now) and, if kind is non-nil, only those of that kind.
func FilterByWindow(txs []domain.Transaction, now time.Time, days int, kind *domain.Kind) Window {
	w := Window{Days: days, ByAccount: make(map[string]Totals)}
	since := now.AddDate(0, 0, -days)

	for _, tr := range txs {
		if tr.Timestamp.Before(since) || tr.Timestamp.After(now) {
			continue
		}
		if kind != nil && tr.Kind != *kind {
			continue
		}
		w.Transactions = append(w.Transactions, tr)
		w.Totals.add(tr)
		acc := w.ByAccount[tr.Account]
		acc.add(tr)
		w.ByAccount[tr.Account] = acc
	}
	return w
}

// Drift reports an account whose stored balance disagrees with a replay of
// the ledger from its baseline.
type Drift struct {
	Account  string `json:"account"`
	Stored   int64  `json:"stored"`
	Replayed int64  `json:"replayed"`
}

// Diff is Stored minus Replayed.
func (d Drift) Diff() int64 {
	return d.Stored - d.Replayed
}

// Replay recomputes each account from its baseline and returns the accounts
// that drifted, in the order given.
func Replay(accounts []domain.Account, txs []domain.Transaction) []Drift {
	var out []Drift
	for _, acc := range accounts {
		replayed := acc.Baseline
		key := acc.Key()
		for _, tr := range txs {
			if domain.AccountKey(tr.Account) != key || !tr.Timestamp.After(acc.BaselineAt) {
				continue
			}
			replayed = money.SaturatingAdd(replayed, tr.Signed())
		}
		if replayed != acc.Balance {
			out = append(out, Drift{Account: acc.Name, Stored: acc.Balance, Replayed: replayed})
		}
	}
	return out
}
