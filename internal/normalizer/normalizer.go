// Package normalizer converts heterogeneous gateway records into canonical
// records with a resolved timestamp and identifier.
package normalizer

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
)

// Field names used by the gateway.
var (
	EpochFields  = []string{"timestamp_unix", "time", "ts"}
	IDFields     = []string{"guid", "guid_message"}
	DeviceFields = []string{"sIdentifiantPhone", "device_id"}
)

const (
	AddressField  = "number"
	BodyField     = "message"
	DateField     = "date"
	HourField     = "hour"
	ReceivedField = "time_received"

	compactLayout  = "20060102150405"
	compactLength  = len(compactLayout)
	epochSecDigits = 10
)

// Normalizer resolves record timestamps in the gateway's local zone. The
// clock is injectable so the ingestion-time fallback is testable.
type Normalizer struct {
	logger logging.Logger
	loc    *time.Location
	now    func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock replaces time.Now for the fallback timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a normalizer. A nil zone means UTC+3.
func NewNormalizer(logger logging.Logger, loc *time.Location, opts ...Option) *Normalizer {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	if loc == nil {
		loc = dateutils.FixedOffset(3)
	}
	n := &Normalizer{logger: logger, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts every record and orders the result newest first. Ties
// keep their input order.
func (n *Normalizer) Normalize(raws []map[string]any) []models.CanonicalRecord {
	records := make([]models.CanonicalRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, n.NormalizeOne(raw))
	}
	slices.SortStableFunc(records, func(a, b models.CanonicalRecord) int {
		switch {
		case a.TimestampEpoch > b.TimestampEpoch:
			return -1
		case a.TimestampEpoch < b.TimestampEpoch:
			return 1
		default:
			return 0
		}
	})
	return records
}

// NormalizeOne converts a single record. It never fails.
func (n *Normalizer) NormalizeOne(raw map[string]any) models.CanonicalRecord {
	rec := models.CanonicalRecord{
		Address:    firstString(raw, AddressField),
		Body:       firstString(raw, BodyField),
		ExternalID: firstString(raw, IDFields...),
		DeviceID:   firstString(raw, DeviceFields...),
		Raw:        raw,
	}

	epoch, source, issues := n.resolveEpoch(raw)
	if source == models.TimestampFromClockFallback {
		n.logger.Warn("No usable timestamp in record, using ingestion time",
			logging.F(logging.FieldMessageID, rec.ExternalID),
			logging.F("issues", issues))
	}
	rec.TimestampEpoch = epoch
	rec.TimestampSource = source
	rec.Issues = issues
	rec.ReceivedAt = time.Unix(epoch, 0).UTC()
	return rec
}

func (n *Normalizer) resolveEpoch(raw map[string]any) (int64, string, []string) {
	var issues []string

	for _, key := range EpochFields {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		epoch, err := truncatedEpoch(v)
		if err == nil {
			return epoch, models.TimestampFromEpochField, issues
		}
		issues = append(issues, fmt.Sprintf("%s: %v", key, err))
	}

	date, hour := firstString(raw, DateField), firstString(raw, HourField)
	if date != "" && hour != "" {
		t, err := dateutils.ParseLocal(date+" "+hour, n.loc)
		if err == nil {
			err = checkRange(t.Unix())
		}
		if err == nil {
			return t.Unix(), models.TimestampFromDateHour, issues
		}
		issues = append(issues, fmt.Sprintf("%s+%s: %v", DateField, HourField, err))
	}

	received := strings.TrimSpace(firstString(raw, ReceivedField))
	if received != "" {
		epoch, source, err := n.parseReceived(received)
		if err == nil {
			err = checkRange(epoch)
		}
		if err == nil {
			return epoch, source, issues
		}
		issues = append(issues, fmt.Sprintf("%s: %v", ReceivedField, err))
	}

	issues = append(issues, "no timestamp field resolved")
	return n.now().Unix(), models.TimestampFromClockFallback, issues
}

// parseReceived reads time_received as epoch milliseconds, epoch seconds or
// a compact local datetime, in that order.
func (n *Normalizer) parseReceived(received string) (int64, string, error) {
	if isDigits(received) && len(received) == 13 {
		ms, err := strconv.ParseInt(received, 10, 64)
		if err == nil {
			return ms / 1000, models.TimestampFromMillis, nil
		}
	}
	if isDigits(received) && len(received) == epochSecDigits {
		s, err := strconv.ParseInt(received, 10, 64)
		if err == nil {
			return s, models.TimestampFromSeconds, nil
		}
	}
	if len(received) >= compactLength && isDigits(received[:4]) {
		t, err := time.ParseInLocation(compactLayout, received[:compactLength], n.loc)
		if err == nil {
			return t.Unix(), models.TimestampFromCompact, nil
		}
	}
	return 0, "", fmt.Errorf("unrecognised value %q", received)
}

// checkRange rejects epochs whose instant cannot be stored.
func checkRange(epoch int64) error {
	if !dateutils.InStorableRange(time.Unix(epoch, 0)) {
		return fmt.Errorf("epoch %d is out of range", epoch)
	}
	return nil
}

// truncatedEpoch reads a numeric value and keeps its first ten digits, which
// turns millisecond and microsecond epochs into seconds.
func truncatedEpoch(v any) (int64, error) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case string:
		s = strings.TrimSpace(x)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if len(s) > epochSecDigits {
		s = s[:epochSecDigits]
	}
	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not numeric: %q", s)
	}
	if err := checkRange(epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}

// firstString returns the first non-empty value among keys, rendered as text.
func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case json.Number:
			s = x.String()
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			s = fmt.Sprint(x)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
