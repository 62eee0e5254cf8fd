// Package intent turns chat text and button payloads into a closed set of
// tagged requests the bot dispatches on.
package intent

import (
	"errors"
	"fmt"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// Kind tags an Intent.
type Kind string

const (
	// Unknown is text that is neither a command nor a transaction.
	Unknown Kind = "unknown"
	// Start shows the welcome and help text (/start, /help).
	Start Kind = "start"
	// NewTransaction records an amount with an optional note ("-50k cafe").
	NewTransaction Kind = "new_transaction"
	// SelectAccount answers an account-selection button.
	SelectAccount Kind = "select_account"
	// ListLedger shows the numbered transaction list (/list, /xem).
	ListLedger Kind = "list_ledger"
	// Stats shows monthly and weekly totals (/stats, /thongke).
	Stats Kind = "stats"
	// Analyze asks the model for spending advice (/analyze, /phantich).
	Analyze Kind = "analyze"
	// DeleteTransaction removes a ledger entry by position (/delete, /xoa).
	DeleteTransaction Kind = "delete_transaction"
	// ClearAll empties the ledger after a confirmation (/clear, /xoahet).
	ClearAll Kind = "clear_all"
	// CancelClear answers the "keep my data" button.
	CancelClear Kind = "cancel_clear"
	// ListAccounts shows every account and the total (/accounts, /taikhoan).
	ListAccounts Kind = "list_accounts"
	// CreateAccount opens an account (/addaccount, /themtk).
	CreateAccount Kind = "create_account"
	// UpdateAccount overwrites an account balance (/setbalance, /capnhattk).
	UpdateAccount Kind = "update_account"
	// DeleteAccount removes an account (/deleteaccount, /xoatk).
	DeleteAccount Kind = "delete_account"
	// Search finds entries by note or account (/search, /timkiem).
	Search Kind = "search"
	// Recent summarises the last few days (/recent).
	Recent Kind = "recent"
	// Export queues a ledger export (/export).
	Export Kind = "export"
	// AddReminder schedules a monthly reminder (/remind).
	AddReminder Kind = "add_reminder"
	// ListReminders shows the chat's reminders (/reminders).
	ListReminders Kind = "list_reminders"
	// DeleteReminder removes a reminder by position (/unremind).
	DeleteReminder Kind = "delete_reminder"
)

// Intent is one user request. Only the fields relevant to Kind are set.
type Intent struct {
	Kind Kind `json:"kind"`

	// NewTransaction, CreateAccount, UpdateAccount, AddReminder.
	RawAmount string      `json:"raw_amount,omitempty"`
	Amount    int64       `json:"amount,omitempty"`
	TxKind    domain.Kind `json:"tx_kind,omitempty"`
	Note      string      `json:"note,omitempty"`

	// Originator identifies who sent the request; set by the transport.
	Originator string `json:"originator,omitempty"`

	// SelectAccount.
	Token  string `json:"token,omitempty"`
	Choice int    `json:"choice,omitempty"`

	// CreateAccount, UpdateAccount, DeleteAccount.
	Account string `json:"account,omitempty"`

	// DeleteTransaction, DeleteReminder. Nil means "show me the list".
	Position *int `json:"position,omitempty"`

	// ClearAll. False asks for confirmation first.
	Confirmed bool `json:"confirmed,omitempty"`

	// Search.
	Keyword string `json:"keyword,omitempty"`

	// Recent.
	Days       int          `json:"days,omitempty"`
	KindFilter *domain.Kind `json:"kind_filter,omitempty"`

	// AddReminder.
	Day int `json:"day,omitempty"`
}

// UsageError is a malformed command. Usage is the example shown to the user.
type UsageError struct {
	Command string
	Usage   string
	Err     error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v (usage: %s)", e.Command, e.Err, e.Usage)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// AsUsage extracts a UsageError from err.
func AsUsage(err error) (*UsageError, bool) {
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func usage(cmd, example string, err error) error {
	if err == nil {
		err = domain.ErrInvalidFormat
	}
	return &UsageError{Command: cmd, Usage: example, Err: err}
}
