package availability

import (
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
)

// Interval is a half-open [Start, End) span of clinic-local wall-clock time.
type Interval struct {
	Start schedule.TimeOfDay `json:"start"`
	End   schedule.TimeOfDay `json:"end"`
}

// Minutes returns the interval length.
func (iv Interval) Minutes() int {
	return int(iv.End) - int(iv.Start)
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Subtract removes busy from each interval in free, splitting intervals that
// surround it. Input intervals must be well-formed (Start < End); output
// preserves ordering.
func Subtract(free []Interval, busy Interval) []Interval {
	if busy.Start >= busy.End {
		return free
	}
	out := make([]Interval, 0, len(free)+1)
	for _, iv := range free {
		if !iv.Overlaps(busy) {
			out = append(out, iv)
			continue
		}
		if iv.Start < busy.Start {
			out = append(out, Interval{Start: iv.Start, End: busy.Start})
		}
		if busy.End < iv.End {
			out = append(out, Interval{Start: busy.End, End: iv.End})
		}
	}
	return out
}

// SubtractAll removes every busy interval from free.
func SubtractAll(free []Interval, busy []Interval) []Interval {
	for _, b := range busy {
		free = Subtract(free, b)
	}
	return free
}

// TotalMinutes sums the lengths of the intervals.
func TotalMinutes(intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		total += iv.Minutes()
	}
	return total
}
