// Package timerange implements half-open minute-of-day intervals, the
// arithmetic primitive behind availability windows and appointments. All
// times are wall-clock in one zone; a range never crosses midnight.
package timerange

import (
	"errors"
	"fmt"
	"sort"
)

const MinutesPerDay = 24 * 60

var (
	ErrInvalidRange      = errors.New("invalid time range")
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

// Range is the half-open interval [Start, End) in minutes since midnight.
// Start is in [0, 1440), End in (0, 1440], and Start < End.
type Range struct {
	Start int
	End   int
}

func New(start, end int) (Range, error) {
	if start < 0 || start >= MinutesPerDay {
		return Range{}, fmt.Errorf("%w: start minute %d out of [0,%d)", ErrInvalidRange, start, MinutesPerDay)
	}
	if end <= 0 || end > MinutesPerDay {
		return Range{}, fmt.Errorf("%w: end minute %d out of (0,%d]", ErrInvalidRange, end, MinutesPerDay)
	}
	if start >= end {
		return Range{}, fmt.Errorf("%w: start %d not before end %d", ErrInvalidRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}

// Overlaps reports whether the two ranges share at least one minute.
// Touching endpoints ([09:00,10:00) vs [10:00,11:00)) do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

func (r Range) Minutes() int {
	return r.End - r.Start
}

// Less orders ranges by (start, end) for deterministic iteration.
func (r Range) Less(o Range) bool {
	if r.Start != o.Start {
		return r.Start < o.Start
	}
	return r.End < o.End
}

func (r Range) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}

// ParseClock converts "HH:MM" to minutes since midnight. "24:00" is accepted
// so a range may end at midnight; Range construction rejects it as a start.
// This is the single canonical clock parser: both the window path and the
// booking path must go through it.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTimeFormat, s)
	}
	hour, ok := twoDigits(s[0], s[1])
	if !ok {
		return 0, fmt.Errorf("%w: %q has a non-numeric hour", ErrInvalidTimeFormat, s)
	}
	minute, ok := twoDigits(s[3], s[4])
	if !ok {
		return 0, fmt.Errorf("%w: %q has a non-numeric minute", ErrInvalidTimeFormat, s)
	}
	if hour == 24 && minute == 0 {
		return MinutesPerDay, nil
	}
	if hour > 23 {
		return 0, fmt.Errorf("%w: hour %d out of range", ErrInvalidTimeFormat, hour)
	}
	if minute > 59 {
		return 0, fmt.Errorf("%w: minute %d out of range", ErrInvalidTimeFormat, minute)
	}
	return hour*60 + minute, nil
}

// ParseClockRange builds a Range from "HH:MM" start/end strings.
func ParseClockRange(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, err
	}
	return New(s, e)
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Sort orders ranges ascending by (start, end) in place.
func Sort(ranges []Range) {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Less(ranges[j]) })
}

// Subtract returns the sub-ranges of window not covered by any busy range,
// in ascending order. Busy ranges may arrive unsorted and may overlap each
// other; a single left-to-right pass over the sorted clips handles both.
func Subtract(window Range, busy []Range) []Range {
	clipped := make([]Range, 0, len(busy))
	for _, b := range busy {
		if !b.Overlaps(window) {
			continue
		}
		if b.Start < window.Start {
			b.Start = window.Start
		}
		if b.End > window.End {
			b.End = window.End
		}
		clipped = append(clipped, b)
	}
	Sort(clipped)

	var free []Range
	cursor := window.Start
	for _, b := range clipped {
		if b.Start > cursor {
			free = append(free, Range{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		free = append(free, Range{Start: cursor, End: window.End})
	}
	return free
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}
