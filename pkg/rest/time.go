package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// timestampLayouts are tried in order. The backends emit zone-less local
// date-times while browsers and this client send RFC 3339 with a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

const dateLayout = "2006-01-02"

var localZone atomic.Pointer[time.Location]

// SetLocalZone sets the zone zone-less timestamps are read in. Nil restores
// time.Local.
func SetLocalZone(loc *time.Location) {
	localZone.Store(loc)
}

// LocalZone returns the zone zone-less timestamps are read in.
func LocalZone() *time.Location {
	if loc := localZone.Load(); loc != nil {
		return loc
	}
	return time.Local
}

// Timestamp is an ISO-8601 instant as exchanged with the backends.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON writes RFC 3339 with milliseconds, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// UnmarshalJSON accepts any of timestampLayouts, null or "".
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses s with the accepted layouts. Zone-less values are
// read in LocalZone.
func ParseTimestamp(s string) (time.Time, error) {
	return ParseTimestampIn(s, LocalZone())
}

// ParseTimestampIn is ParseTimestamp with zone-less values read in loc.
func ParseTimestampIn(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized format %q", s)
}

// Date is a calendar day without time of day.
type Date struct {
	time.Time
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	parsed, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("date: %w", err)
	}
	return Date{Time: parsed}, nil
}

// String renders YYYY-MM-DD, or "" for the zero value.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON writes YYYY-MM-DD, or null for the zero value.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD, a full timestamp, null or "".
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("date: unrecognized format %q", s)
	}
	y, m, day := ts.Date()
	d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return nil
}
