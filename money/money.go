/*
Package money converts between localized decimal text and integer minor units.

PURPOSE:
  Every monetary value inside the engine is an int64 number of cents.
  This package is the ONLY place where money touches text: operator input
  ("129,90", "1.234,56", "R$ 50") is parsed into cents at the boundary,
  and cents are formatted back into localized text for display.

FORMAT:
  Comma is the decimal separator, dot is the thousands separator
  (pt-BR convention). Parse strips everything that is not a digit,
  separator, or sign before interpreting, so currency symbols and
  stray whitespace are tolerated.

WHY INTEGER CENTS?
  Binary floating point cannot represent 0.1 exactly. Summing partial
  payments in float64 drifts, and a drifting sum breaks settlement
  detection. Integer cents make every comparison exact.

CONTRACT:
  Parse never fails: empty or unparseable input yields 0 cents.
  Format(n) round-trips: Parse(Format(n)) == n for all n >= 0.

SEE ALSO:
  - grooming/payments.go: Uses Parse for partial-payment input
  - api/dto.go: Uses Format for display values
*/
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Parse converts localized decimal text into minor units (cents).
// "129,90" -> 12990, "1.234,56" -> 123456, "" -> 0.
// Never returns an error: anything unparseable is 0.
func Parse(text string) int64 {
	cleaned := sanitize(text)
	if cleaned == "" || cleaned == "-" {
		return 0
	}

	// Dots are thousands separators, comma is the decimal point.
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	return d.Mul(hundred).Round(0).IntPart()
}

// Format converts minor units into localized decimal text.
// 12990 -> "129,90", 123456 -> "1.234,56", 0 -> "0,00".
func Format(minorUnits int64) string {
	negative := minorUnits < 0
	if negative {
		minorUnits = -minorUnits
	}

	fixed := decimal.NewFromInt(minorUnits).Div(hundred).StringFixed(2)

	parts := strings.SplitN(fixed, ".", 2)
	whole, frac := parts[0], parts[1]

	// Insert dots every three digits from the right.
	var b strings.Builder
	n := len(whole)
	for i, r := range whole {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := b.String() + "," + frac
	if negative {
		out = "-" + out
	}
	return out
}

// sanitize keeps digits, separators, and a single leading minus sign.
func sanitize(text string) string {
	var b strings.Builder
	for i, r := range text {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
