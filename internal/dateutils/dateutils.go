// Package dateutils provides the date and time parsing shared by the
// extractor, the source record normalizer and the webhook.
package dateutils

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Layouts used by the gateway and by MPESA message bodies
const (
	DateLayoutISO  = "2006-01-02"
	TimeLayoutISO  = "15:04:05"
	DateLayoutFull = "2006-01-02 15:04:05"

	// MPESA bodies write dates day-first with either a 2- or 4-digit year
	// and times on a 12-hour clock, e.g. "20/01/25" and "10:15AM".
	DateLayoutShortYear = "2/1/06"
	DateLayoutLongYear  = "2/1/2006"
	TimeLayout12h       = "3:04PM"
)

// MessageLayouts are the date layouts tried, in order, by Resolver.
var MessageLayouts = []string{
	DateLayoutShortYear,
	DateLayoutLongYear,
}

// LocalLayouts are the ISO-like local datetime layouts accepted for a
// combined date and hour pair.
var LocalLayouts = []string{
	DateLayoutFull,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

var whitespace = regexp.MustCompile(`\s+`)

// Instants are stored as int64 Unix nanoseconds, which bounds them to
// roughly 1677 through 2262.
var (
	MinInstant = time.Unix(0, math.MinInt64).UTC()
	MaxInstant = time.Unix(0, math.MaxInt64).UTC()
)

// InStorableRange reports whether t lies between MinInstant and MaxInstant.
func InStorableRange(t time.Time) bool {
	return !t.Before(MinInstant) && !t.After(MaxInstant)
}

// Result is a resolved instant, or nil, with the reasons resolution failed.
type Result struct {
	Value  *time.Time
	Issues []string
}

// Resolver turns the raw date and time tokens of a message into an instant
// in the provider's fixed zone.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver for the given zone. A nil zone means UTC+3.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = FixedOffset(3)
	}
	return &Resolver{loc: loc}
}

// FixedOffset returns a fixed zone offset by the given number of hours.
func FixedOffset(hours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+03d:00", hours), hours*3600)
}

// Location returns the resolver's zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve parses date and clock tokens such as "20/01/25" and "10:15 am".
// Missing input yields a nil value without issues; a failed parse yields a
// nil value with one issue per attempted layout.
func (r *Resolver) Resolve(date, clock string) Result {
	date = strings.TrimSpace(date)
	clock = strings.ToUpper(whitespace.ReplaceAllString(clock, ""))
	if date == "" || clock == "" {
		return Result{}
	}

	var issues []string
	for _, layout := range MessageLayouts {
		t, err := time.ParseInLocation(layout+" "+TimeLayout12h, date+" "+clock, r.loc)
		if err == nil {
			if !InStorableRange(t) {
				return Result{Issues: []string{fmt.Sprintf("%q %q is out of range", date, clock)}}
			}
			return Result{Value: &t}
		}
		issues = append(issues, fmt.Sprintf("%q %q does not match %s %s", date, clock, layout, TimeLayout12h))
	}
	return Result{Issues: issues}
}

// ParseLocal parses an ISO-like local datetime in loc using LocalLayouts.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	value = CleanDateString(value)
	for _, layout := range LocalLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse local datetime: %s", value)
}

// CleanDateString removes unwanted characters and normalizes a date string
func CleanDateString(dateStr string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}
