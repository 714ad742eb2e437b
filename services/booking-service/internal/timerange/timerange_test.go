package timerange

import (
	"errors"
	"testing"
)

func mustRange(t *testing.T, start, end string) Range {
	t.Helper()
	r, err := ParseClockRange(start, end)
	if err != nil {
		t.Fatalf("ParseClockRange(%s, %s) failed: %v", start, end, err)
	}
	return r
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:00", want: 540},
		{in: "12:30", want: 750},
		{in: "23:59", want: 1439},
		{in: "24:00", want: 1440},
		{in: "24:01", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09.00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "09:0a", wantErr: true},
		{in: "", wantErr: true},
		{in: "09:00:00", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %d", tc.in, got)
			} else if !errors.Is(err, ErrInvalidTimeFormat) {
				t.Errorf("ParseClock(%q): expected ErrInvalidTimeFormat, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	cases := []struct {
		start, end int
	}{
		{start: -1, end: 60},
		{start: 1440, end: 1440},
		{start: 600, end: 600},
		{start: 600, end: 540},
		{start: 0, end: 0},
		{start: 0, end: 1441},
	}
	for _, tc := range cases {
		if _, err := New(tc.start, tc.end); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("New(%d, %d): expected ErrInvalidRange, got %v", tc.start, tc.end, err)
		}
	}
	if r, err := New(0, 1440); err != nil || r.Minutes() != 1440 {
		t.Errorf("New(0, 1440): got %v, %v", r, err)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		a, b [2]string
		want bool
	}{
		// Touching endpoints are not an overlap.
		{a: [2]string{"09:00", "10:00"}, b: [2]string{"10:00", "11:00"}, want: false},
		// One shared minute is.
		{a: [2]string{"09:00", "10:01"}, b: [2]string{"10:00", "11:00"}, want: true},
		{a: [2]string{"09:00", "12:00"}, b: [2]string{"10:00", "11:00"}, want: true},
		{a: [2]string{"10:00", "11:00"}, b: [2]string{"09:00", "12:00"}, want: true},
		{a: [2]string{"09:00", "10:00"}, b: [2]string{"11:00", "12:00"}, want: false},
		{a: [2]string{"09:00", "10:00"}, b: [2]string{"09:00", "10:00"}, want: true},
	}
	for _, tc := range cases {
		a := mustRange(t, tc.a[0], tc.a[1])
		b := mustRange(t, tc.b[0], tc.b[1])
		if got := a.Overlaps(b); got != tc.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", a, b, got, tc.want)
		}
		// Overlap is symmetric.
		if got := b.Overlaps(a); got != tc.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", b, a, got, tc.want)
		}
	}
}

func TestContains(t *testing.T) {
	window := mustRange(t, "09:00", "12:00")
	cases := []struct {
		b    [2]string
		want bool
	}{
		{b: [2]string{"09:00", "09:30"}, want: true},
		{b: [2]string{"11:30", "12:00"}, want: true},
		{b: [2]string{"09:00", "12:00"}, want: true},
		{b: [2]string{"11:45", "12:15"}, want: false},
		{b: [2]string{"08:45", "09:15"}, want: false},
		{b: [2]string{"12:00", "13:00"}, want: false},
	}
	for _, tc := range cases {
		b := mustRange(t, tc.b[0], tc.b[1])
		if got := window.Contains(b); got != tc.want {
			t.Errorf("%v.Contains(%v) = %v, want %v", window, b, got, tc.want)
		}
	}
}

func TestSubtract(t *testing.T) {
	window := mustRange(t, "09:00", "12:00")

	t.Run("no busy", func(t *testing.T) {
		free := Subtract(window, nil)
		if len(free) != 1 || free[0] != window {
			t.Fatalf("expected whole window free, got %v", free)
		}
	})

	t.Run("middle gap", func(t *testing.T) {
		busy := []Range{mustRange(t, "10:00", "10:30")}
		free := Subtract(window, busy)
		want := []Range{mustRange(t, "09:00", "10:00"), mustRange(t, "10:30", "12:00")}
		assertRanges(t, free, want)
	})

	t.Run("unsorted overlapping busy", func(t *testing.T) {
		busy := []Range{
			mustRange(t, "10:30", "11:00"),
			mustRange(t, "09:00", "09:30"),
			mustRange(t, "10:45", "11:15"),
		}
		free := Subtract(window, busy)
		want := []Range{mustRange(t, "09:30", "10:30"), mustRange(t, "11:15", "12:00")}
		assertRanges(t, free, want)
	})

	t.Run("busy spilling past window edges", func(t *testing.T) {
		busy := []Range{mustRange(t, "08:00", "09:30"), mustRange(t, "11:30", "13:00")}
		free := Subtract(window, busy)
		want := []Range{mustRange(t, "09:30", "11:30")}
		assertRanges(t, free, want)
	})

	t.Run("fully booked", func(t *testing.T) {
		busy := []Range{mustRange(t, "09:00", "12:00")}
		if free := Subtract(window, busy); len(free) != 0 {
			t.Fatalf("expected no free ranges, got %v", free)
		}
	})
}

func assertRanges(t *testing.T, got, want []Range) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
