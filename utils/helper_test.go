package utils

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2026-02")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	want := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for _, bad := range []string{"", "2026", "2026-2", "2026-13", "2026-02-01", "Feb 2026"} {
		if _, err := ParseMonth(bad); err != ErrInvalidMonth {
			t.Fatalf("ParseMonth(%q): expected ErrInvalidMonth, got %v", bad, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-08-31")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for _, bad := range []string{"", "2026-08", "2026-8-31", "2026-02-30", "31-08-2026"} {
		if _, err := ParseDate(bad); err != ErrInvalidDate {
			t.Fatalf("ParseDate(%q): expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		date time.Time
		want int
	}{
		{time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), 31},
		{time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), 28},
		{time.Date(2028, time.February, 1, 0, 0, 0, 0, time.UTC), 29}, // leap year
		{time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC), 30},
	}
	for _, tc := range cases {
		if got := DaysInMonth(tc.date); got != tc.want {
			t.Fatalf("DaysInMonth(%v): expected %d, got %d", tc.date, tc.want, got)
		}
	}
}

func TestDayKeys(t *testing.T) {
	keys := DayKeys(time.Date(2026, time.February, 17, 10, 30, 0, 0, time.UTC))
	if len(keys) != 28 {
		t.Fatalf("expected 28 keys, got %d", len(keys))
	}
	if keys[0] != "2026-02-01" || keys[27] != "2026-02-28" {
		t.Fatalf("unexpected bounds: %s .. %s", keys[0], keys[27])
	}
}

func TestTruncateToDay(t *testing.T) {
	in := time.Date(2026, time.August, 31, 23, 59, 59, 123, time.UTC)
	got := TruncateToDay(in)
	want := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
