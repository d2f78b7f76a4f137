package schedule

import (
	"fmt"
	"time"
)

// TimeOfDay is a clinic-local wall-clock time expressed as minutes since
// midnight. The core never converts time zones; callers normalize before
// invoking (dates are plain YYYY-MM-DD, times HH:MM:SS).
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM:SS" or "HH:MM" into minutes since midnight.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		if _, err2 := fmt.Sscanf(s, "%d:%d", &h, &m); err2 != nil {
			return 0, fmt.Errorf("schedule: invalid time %q: want HH:MM:SS", s)
		}
		sec = 0
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("schedule: time %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// String renders the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:00", int(t)/60, int(t)%60)
}

// Minutes returns the value as an int for arithmetic.
func (t TimeOfDay) Minutes() int { return int(t) }

// MarshalJSON renders the time as a quoted HH:MM:SS string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted HH:MM:SS or HH:MM string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("schedule: time must be a JSON string")
	}
	parsed, err := ParseTimeOfDay(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

const dateLayout = "2006-01-02"

// ParseDate parses a plain YYYY-MM-DD calendar date. The returned time.Time
// is midnight UTC and is used only as a date, never as an instant.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// SameDate reports whether two date values fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
