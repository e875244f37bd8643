package todo

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the fixed ISO-8601 layout written to disk
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// parseLayouts are tried in order when reading timestamps. The zone-less
// layouts cover files written by the older Python build of the server.
var parseLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a UTC instant with millisecond precision
type Timestamp struct {
	t time.Time
}

// NewTimestamp converts t to UTC and truncates it to milliseconds so that
// a JSON round trip yields an identical value.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp parses any accepted ISO-8601 form
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// Time returns the underlying instant
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether the timestamp was never set
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Before reports whether ts is earlier than other
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// Equal reports whether both timestamps denote the same instant
func (ts Timestamp) Equal(other Timestamp) bool { return ts.t.Equal(other.t) }

func (ts Timestamp) String() string {
	return ts.t.Format(TimestampLayout)
}

// MarshalJSON writes the fixed layout
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON accepts any layout in parseLayouts
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
