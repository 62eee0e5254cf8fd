package domain

import (
	"time"
)

// Kind is the direction of a transaction.
type Kind string

const (
	// KindIncome adds the amount to the account balance.
	KindIncome Kind = "income"
	// KindExpense subtracts the amount from the account balance.
	KindExpense Kind = "expense"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Sign returns +1 for income and -1 for expense.
func (k Kind) Sign() int64 {
	if k == KindIncome {
		return 1
	}
	return -1
}

// ParseKind maps user text ("income", "thu", "expense", "chi") to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "income", "in", "thu", "+":
		return KindIncome, true
	case "expense", "out", "chi", "-":
		return KindExpense, true
	}
	return "", false
}

// Transaction is one recorded ledger entry. It is never edited after it is
// appended; it can only be removed from the ledger.
// Account holds the account name by value, so a transaction survives the
// deletion of its account.
type Transaction struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`       // append order, storage key
	Amount    int64     `json:"amount"`    // smallest currency unit, always > 0
	Note      string    `json:"note"`      // free text from the user
	Kind      Kind      `json:"kind"`      // sign lives here, never in Amount
	Timestamp time.Time `json:"timestamp"` // set on creation
	Account   string    `json:"account"`
}

// Signed returns the balance delta this transaction represents.
func (t Transaction) Signed() int64 {
	return t.Kind.Sign() * t.Amount
}
