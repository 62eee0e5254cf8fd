package domain

import (
	"strings"
	"time"
)

// Account is a named balance holder. Names are unique under
// case-insensitive comparison and act as the natural key.
type Account struct {
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`

	// Baseline is the balance the account had at BaselineAt, either its
	// opening balance or the last administrative overwrite. Replaying the
	// ledger from here must reproduce Balance.
	Baseline   int64     `json:"baseline"`
	BaselineAt time.Time `json:"baseline_at"`
}

// Key returns the storage key for the account.
func (a Account) Key() string {
	return AccountKey(a.Name)
}

// AccountKey normalises an account name for lookup.
func AccountKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
