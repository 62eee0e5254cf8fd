// Package money parses and formats the shorthand amounts users type into
// the chat: "250", "10k", "+1m", "-5k".
package money

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

var shorthand = regexp.MustCompile(`^([+-]?)(\d+)([km]?)$`)

// Parse converts shorthand text into an absolute amount in the smallest
// currency unit. The sign is not part of the result; see KindOf.
// "0" parses fine; callers that need a transaction amount use ParseAmount.
func Parse(text string) (int64, error) {
	_, v, err := parse(text)
	return v, err
}

// ParseAmount is Parse plus the zero guard transactions need.
func ParseAmount(text string) (int64, error) {
	v, err := Parse(text)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("ParseAmount: %q: %w", text, domain.ErrInvalidAmount)
	}
	return v, nil
}

// ParseBalance parses an account balance, where a leading "-" makes the
// value negative. Zero is allowed.
func ParseBalance(text string) (int64, error) {
	sign, v, err := parse(text)
	if err != nil {
		return 0, err
	}
	if sign == "-" {
		return -v, nil
	}
	return v, nil
}

// KindOf derives the transaction kind from the raw amount text: a leading
// "+" is income, anything else is an expense.
func KindOf(text string) domain.Kind {
	if strings.HasPrefix(strings.TrimSpace(text), "+") {
		return domain.KindIncome
	}
	return domain.KindExpense
}

func parse(text string) (string, int64, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	m := shorthand.FindStringSubmatch(s)
	if m == nil {
		return "", 0, fmt.Errorf("parse %q: %w", text, domain.ErrInvalidFormat)
	}

	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("parse %q: %w", text, domain.ErrInvalidFormat)
	}

	var unit int64 = 1
	switch m[3] {
	case "k":
		unit = 1_000
	case "m":
		unit = 1_000_000
	}
	if n > math.MaxInt64/unit {
		return "", 0, fmt.Errorf("parse %q: too large: %w", text, domain.ErrInvalidFormat)
	}

	return m[1], n * unit, nil
}

// Format renders an amount the way Vietnamese users expect: dot grouping
// and a trailing dong sign, e.g. "-1.250.000 ₫".
func Format(v int64) string {
	neg := v < 0
	var u uint64
	if neg {
		u = uint64(-(v + 1)) + 1
	} else {
		u = uint64(v)
	}

	digits := strconv.FormatUint(u, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteString(" ₫")
	return b.String()
}

// Add returns a+b and false when the sum leaves the int64 range.
func Add(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// SaturatingAdd is Add clamped to the int64 bounds, for read-only sums.
func SaturatingAdd(a, b int64) int64 {
	if v, ok := Add(a, b); ok {
		return v
	}
	if b > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}
