package domain

import (
	"fmt"
	"time"
)

// TimeLayout is the canonical UTC layout for every stored and transmitted
// timestamp. Values in this layout compare correctly as strings.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the layout of session dates and the cycle start date.
const DateLayout = "2006-01-02"

// SQLNow is the SQLite expression that yields the current time in TimeLayout.
const SQLNow = "strftime('%Y-%m-%dT%H:%M:%fZ','now')"

// Timestamp is a point in time rendered in TimeLayout.
type Timestamp string

// Epoch is the watermark of a mirror that has never pulled.
const Epoch Timestamp = "1970-01-01T00:00:00.000Z"

// NewTimestamp formats t in the canonical layout.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(TimeLayout))
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// ParseTimestamp accepts any RFC 3339 value (with or without fractional
// seconds, any offset) and returns it in canonical form. An empty string
// yields Epoch.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Epoch, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp %q is not RFC 3339", ErrInvalidInput, s)
	}
	return NewTimestamp(t), nil
}

// Time converts back to time.Time. A malformed value yields the zero time.
func (ts Timestamp) Time() time.Time {
	t, err := time.Parse(TimeLayout, string(ts))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Add shifts the timestamp by d.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return NewTimestamp(ts.Time().Add(d))
}

func (ts Timestamp) String() string { return string(ts) }

// MaxTimestamp returns the later of a and b.
func MaxTimestamp(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}

// TimestampPtr is a convenience for optional columns.
func TimestampPtr(ts Timestamp) *Timestamp { return &ts }

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, nil
}
