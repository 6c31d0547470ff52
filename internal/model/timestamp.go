package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Display layouts for persisted timestamps.
const (
	DisplayLayout = "2006-01-02 15:04:05"
	DateLayout    = "2006-01-02"
)

var parseLayouts = []string{
	DisplayLayout,
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	DateLayout,
}

// Timestamp is a point in time as stored in the JSON checkpoints. Commit
// times are rendered in the display layout; publication dates that arrive as
// bare dates keep their date-only form so they round-trip verbatim.
type Timestamp struct {
	Time     time.Time
	DateOnly bool
}

// NewTimestamp returns a display timestamp for t in UTC, truncated to seconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// FromEpoch converts a unix epoch (as printed by git's %ct) to a Timestamp.
func FromEpoch(epoch int64) Timestamp {
	return NewTimestamp(time.Unix(epoch, 0))
}

// ParseEpoch parses a decimal unix epoch string.
func ParseEpoch(s string) (Timestamp, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return Timestamp{}, eris.Wrapf(err, "timestamp: parse epoch %q", s)
	}
	return FromEpoch(n), nil
}

// ParseTimestamp accepts the display layout, RFC 3339 and bare dates.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return Timestamp{Time: t.UTC(), DateOnly: layout == DateLayout}, nil
		}
	}
	return Timestamp{}, eris.Errorf("timestamp: unrecognized format %q", s)
}

// Day returns the UTC calendar day of the timestamp at midnight.
func (t Timestamp) Day() time.Time {
	y, m, d := t.Time.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero()
}

// Equal compares instants and form.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.DateOnly == o.DateOnly && t.Time.Equal(o.Time)
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	if t.DateOnly {
		return t.Time.UTC().Format(DateLayout)
	}
	return t.Time.UTC().Format(DisplayLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
