// Package currencyutils provides decimal amount parsing and formatting for
// Kenyan shilling values as they appear in MPESA messages.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = regexp.MustCompile(`(?i)ksh\.?|kes|\s`)

// ParseAmount parses an amount such as "5,000.00" or "Ksh 1,234.5" into an
// exact decimal. Commas are always thousands separators.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)
	if standardized == "" {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': empty", amountStr)
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}

	return amount, nil
}

// StandardizeAmount strips the currency marker, whitespace and thousands
// separators so the result can be handed to decimal.NewFromString.
func StandardizeAmount(amountStr string) string {
	amountStr = currencyMarks.ReplaceAllString(amountStr, "")
	return strings.ReplaceAll(amountStr, ",", "")
}

// FormatAmount renders an amount with two decimals and comma thousands
// separators, prefixed by label when one is given: "Ksh 15,000.00".
func FormatAmount(amount decimal.Decimal, label string) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)

	if label == "" {
		return b.String()
	}
	return label + " " + b.String()
}
