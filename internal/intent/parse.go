package intent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
)

// DefaultRecentDays is the window /recent uses without an argument.
const DefaultRecentDays = 7

// Callback payload prefixes. Payloads stay under Telegram's 64-byte limit.
const (
	CallbackSelect   = "sel"
	CallbackClearYes = "clear:yes"
	CallbackClearNo  = "clear:no"
)

var commands = map[string]Kind{
	"start":         Start,
	"help":          Start,
	"list":          ListLedger,
	"xem":           ListLedger,
	"stats":         Stats,
	"thongke":       Stats,
	"analyze":       Analyze,
	"phantich":      Analyze,
	"delete":        DeleteTransaction,
	"xoa":           DeleteTransaction,
	"clear":         ClearAll,
	"xoahet":        ClearAll,
	"accounts":      ListAccounts,
	"taikhoan":      ListAccounts,
	"addaccount":    CreateAccount,
	"themtk":        CreateAccount,
	"setbalance":    UpdateAccount,
	"capnhattk":     UpdateAccount,
	"deleteaccount": DeleteAccount,
	"xoatk":         DeleteAccount,
	"search":        Search,
	"timkiem":       Search,
	"recent":        Recent,
	"export":        Export,
	"remind":        AddReminder,
	"reminders":     ListReminders,
	"unremind":      DeleteReminder,
}

// Parse maps a chat message to an Intent. Plain chatter that is neither a
// command nor a transaction yields Unknown with a nil error.
func Parse(text string) (Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Intent{Kind: Unknown}, nil
	}
	if strings.HasPrefix(text, "/") {
		return parseCommand(text)
	}
	return parseTransaction(text)
}

// parseTransaction handles "<amount> <note>", e.g. "10k cafe" or "+1m salary".
func parseTransaction(text string) (Intent, error) {
	if !startsLikeAmount(text) {
		return Intent{Kind: Unknown}, nil
	}

	raw, note := splitFirst(text)
	if note == "" {
		return Intent{}, usage("transaction", "10k cafe", nil)
	}

	amount, err := money.ParseAmount(raw)
	if err != nil {
		return Intent{}, usage("transaction", "10k cafe", err)
	}

	return Intent{
		Kind:      NewTransaction,
		RawAmount: raw,
		Amount:    amount,
		TxKind:    money.KindOf(raw),
		Note:      note,
	}, nil
}

func parseCommand(text string) (Intent, error) {
	head, args := splitFirst(text[1:])
	// Group chats address commands as /cmd@botname.
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	name := strings.ToLower(head)

	kind, ok := commands[name]
	if !ok {
		return Intent{Kind: Unknown}, nil
	}

	switch kind {
	case DeleteTransaction:
		return parsePosition(kind, "/"+name, "/xoa 1", args)
	case DeleteReminder:
		if args == "" {
			return Intent{}, usage("/"+name, "/unremind 1", nil)
		}
		return parsePosition(kind, "/"+name, "/unremind 1", args)
	case CreateAccount:
		return parseNameBalance(kind, "/"+name, "/themtk Ví 100k", args)
	case UpdateAccount:
		return parseNameBalance(kind, "/"+name, "/capnhattk Ví 150k", args)
	case DeleteAccount:
		if args == "" {
			return Intent{}, usage("/"+name, "/xoatk Ví", nil)
		}
		return Intent{Kind: kind, Account: args}, nil
	case Search:
		if args == "" {
			return Intent{}, usage("/"+name, "/search cafe", nil)
		}
		return Intent{Kind: kind, Keyword: args}, nil
	case Recent:
		return parseRecent(args)
	case AddReminder:
		return parseReminder(args)
	}

	return Intent{Kind: kind}, nil
}

func parsePosition(kind Kind, cmd, example, args string) (Intent, error) {
	if args == "" {
		return Intent{Kind: kind}, nil
	}
	n, err := strconv.Atoi(args)
	if err != nil {
		return Intent{}, usage(cmd, example, nil)
	}
	return Intent{Kind: kind, Position: &n}, nil
}

// parseNameBalance splits "<name words...> <balance>"; the name may contain spaces.
func parseNameBalance(kind Kind, cmd, example, args string) (Intent, error) {
	i := strings.LastIndexAny(args, " \t")
	if i < 0 {
		return Intent{}, usage(cmd, example, nil)
	}
	name := strings.TrimSpace(args[:i])
	raw := strings.TrimSpace(args[i+1:])
	if name == "" {
		return Intent{}, usage(cmd, example, nil)
	}

	balance, err := money.ParseBalance(raw)
	if err != nil {
		return Intent{}, usage(cmd, example, err)
	}
	return Intent{Kind: kind, Account: name, RawAmount: raw, Amount: balance}, nil
}

func parseRecent(args string) (Intent, error) {
	in := Intent{Kind: Recent, Days: DefaultRecentDays}
	for _, f := range strings.Fields(args) {
		if n, err := strconv.Atoi(f); err == nil {
			if n <= 0 {
				return Intent{}, usage("/recent", "/recent 7 expense", nil)
			}
			in.Days = n
			continue
		}
		k, ok := domain.ParseKind(strings.ToLower(f))
		if !ok {
			return Intent{}, usage("/recent", "/recent 7 expense", nil)
		}
		in.KindFilter = &k
	}
	return in, nil
}

// parseReminder handles "<day> <amount> <note>".
func parseReminder(args string) (Intent, error) {
	const example = "/remind 5 3m tien nha"

	fields := strings.Fields(args)
	if len(fields) < 3 {
		return Intent{}, usage("/remind", example, nil)
	}
	day, err := strconv.Atoi(fields[0])
	if err != nil || day < 1 || day > domain.MaxReminderDay {
		return Intent{}, usage("/remind", example, nil)
	}
	amount, err := money.ParseAmount(fields[1])
	if err != nil {
		return Intent{}, usage("/remind", example, err)
	}
	return Intent{
		Kind:      AddReminder,
		Day:       day,
		RawAmount: fields[1],
		Amount:    amount,
		Note:      strings.Join(fields[2:], " "),
	}, nil
}

// ParseCallback maps an inline button payload to an Intent.
func ParseCallback(data string) (Intent, error) {
	switch data {
	case CallbackClearYes:
		return Intent{Kind: ClearAll, Confirmed: true}, nil
	case CallbackClearNo:
		return Intent{Kind: CancelClear}, nil
	}

	parts := strings.Split(data, ":")
	if len(parts) == 3 && parts[0] == CallbackSelect && parts[1] != "" {
		idx, err := strconv.Atoi(parts[2])
		if err == nil && idx >= 0 {
			return Intent{Kind: SelectAccount, Token: parts[1], Choice: idx}, nil
		}
	}
	return Intent{}, fmt.Errorf("callback %q: %w", data, domain.ErrInvalidFormat)
}

// SelectCallback builds the payload for choosing candidate idx.
func SelectCallback(token string, idx int) string {
	return fmt.Sprintf("%s:%s:%d", CallbackSelect, token, idx)
}

func startsLikeAmount(text string) bool {
	c := text[0]
	return c == '+' || c == '-' || (c >= '0' && c <= '9')
}

func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
