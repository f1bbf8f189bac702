// Package phoneutils canonicalizes mobile numbers to the international
// "+<country><subscriber>" form. It is a heuristic, not a validator: odd
// shapes still produce a best-effort value and an issue note.
package phoneutils

import (
	"fmt"
	"strings"
	"unicode"
)

// Result carries the normalized number, or nil when there was nothing to
// normalize, plus the reasons the input looked unusual.
type Result struct {
	Value  *string
	Issues []string
}

// Normalizer holds the regional numbering plan.
type Normalizer struct {
	countryCode      string
	trunkPrefix      string
	mobilePrefix     string
	subscriberDigits int
}

// NewNormalizer builds a normalizer for the given country calling code and
// mobile prefix. The national trunk prefix is "0" and subscriber numbers
// have nine digits.
func NewNormalizer(countryCode, mobilePrefix string) *Normalizer {
	return &Normalizer{
		countryCode:      strings.TrimPrefix(countryCode, "+"),
		trunkPrefix:      "0",
		mobilePrefix:     mobilePrefix,
		subscriberDigits: 9,
	}
}

var defaultNormalizer = NewNormalizer("254", "7")

// Normalize applies the default Kenyan numbering plan.
func Normalize(raw string) Result {
	return defaultNormalizer.Normalize(raw)
}

// Normalize rewrites raw into international form.
func (n *Normalizer) Normalize(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{}
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, raw)

	if digits == "" {
		return Result{Issues: []string{fmt.Sprintf("no digits in %q", raw)}}
	}

	var value string
	switch {
	case strings.HasPrefix(digits, n.trunkPrefix):
		value = "+" + n.countryCode + digits[len(n.trunkPrefix):]
	case strings.HasPrefix(digits, n.countryCode):
		value = "+" + digits
	case len(digits) == n.subscriberDigits && strings.HasPrefix(digits, n.mobilePrefix):
		value = "+" + n.countryCode + digits
	case !strings.HasPrefix(raw, "+"):
		value = "+" + digits
	default:
		value = raw
	}

	return Result{Value: &value, Issues: n.check(value)}
}

func (n *Normalizer) check(value string) []string {
	var issues []string
	national := "+" + n.countryCode
	if !strings.HasPrefix(value, national) {
		issues = append(issues, fmt.Sprintf("not a +%s number", n.countryCode))
		return issues
	}
	subscriber := value[len(national):]
	if len(subscriber) != n.subscriberDigits {
		issues = append(issues, fmt.Sprintf("expected %d subscriber digits, got %d", n.subscriberDigits, len(subscriber)))
	}
	if !strings.HasPrefix(subscriber, n.mobilePrefix) {
		issues = append(issues, fmt.Sprintf("subscriber number does not start with mobile prefix %s", n.mobilePrefix))
	}
	return issues
}

// String returns the value or "" for a nil result.
func (r Result) String() string {
	if r.Value == nil {
		return ""
	}
	return *r.Value
}
