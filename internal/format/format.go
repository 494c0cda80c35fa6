// Package format holds the display and input-validation helpers shared by the
// API and its clients.
package format

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every rendered amount.
var CurrencySymbol = "₹"

const (
	dateLayout     = "02 Jan 2006"
	dateTimeLayout = "02 Jan 2006, 03:04 PM"
)

// Currency renders d with two decimals, e.g. "₹1250.50". A negative value
// carries its sign before the symbol.
func Currency(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Abs().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}

func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeLayout)
}

// ValidPhone accepts exactly ten ASCII digits.
func ValidPhone(s string) bool {
	return allDigits(s, 10)
}

// ValidOTP accepts exactly six ASCII digits.
func ValidOTP(s string) bool {
	return allDigits(s, 6)
}

// ValidPIN accepts exactly four ASCII digits.
func ValidPIN(s string) bool {
	return allDigits(s, 4)
}

func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizePhone strips spaces, dashes and a leading +91/0 so that "+91 98765-43210"
// and "09876543210" both become "9876543210".
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	}
	return digits
}

// Initials returns up to two uppercase initials from the first two words of name.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	var b strings.Builder
	for i, w := range words {
		if i == 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Truncate shortens s to at most n runes, replacing the tail with "...".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
