// Package money formats and parses amounts held in minor units (cents).
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLabel is the currency label shown in front of formatted amounts.
const DefaultLabel = "KSH"

// MaxAmount is the largest single amount, in minor units, that budgets,
// expenses and incomes accept.
const MaxAmount int64 = 100_000_000_000_000

// MaxSpent bounds a budget's accumulated spent amount, far below the int64
// limit so that adding one more MaxAmount can never overflow.
const MaxSpent = 1000 * MaxAmount

// ErrInvalidAmount is returned when a string is not a positive decimal amount.
var ErrInvalidAmount = errors.New("invalid amount")

// Formatter renders minor-unit amounts as "<label> 1,234.56".
type Formatter struct {
	label   string
	printer *message.Printer
}

// NewFormatter returns a Formatter that prefixes amounts with label.
func NewFormatter(label string) *Formatter {
	if label == "" {
		label = DefaultLabel
	}
	return &Formatter{
		label:   label,
		printer: message.NewPrinter(language.English),
	}
}

// Format renders minor with two fraction digits and thousands separators.
// Negative amounts put the minus sign before the label: "-KSH 50.00".
func (f *Formatter) Format(minor int64) string {
	major := decimal.New(minor, -2)
	abs := major.Abs()
	whole := abs.Truncate(0)
	// StringFixed gives "0.xx"; keep the ".xx".
	cents := abs.Sub(whole).StringFixed(2)[1:]
	grouped := f.printer.Sprint(number.Decimal(whole.IntPart())) + cents
	if major.IsNegative() {
		return "-" + f.label + " " + grouped
	}
	return f.label + " " + grouped
}

var defaultFormatter = NewFormatter(DefaultLabel)

// Format renders minor using the default label.
func Format(minor int64) string {
	return defaultFormatter.Format(minor)
}

// ParseAmount converts a positive decimal string such as "12.34" or "12,34"
// into minor units. Digits beyond the second fraction digit are rounded half-up.
// A comma is read as the decimal separator only when it cannot be a
// thousands separator, so "1,000" and "1,234.56" are rejected.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		if strings.ContainsAny(s[i+1:], ",.") || strings.Contains(s[:i], ".") || len(s)-i-1 == 3 {
			return 0, ErrInvalidAmount
		}
		s = s[:i] + "." + s[i+1:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	minor := d.Round(2).Shift(2)
	if !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
