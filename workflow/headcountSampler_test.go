package workflow

import (
	"testing"
	"time"
)

// NOTE: These tests are intentionally DB-free. They pin the tick scheduling
// of the sampler; SampleOnce against a real database is covered by the gated
// integration tests under models.

func TestNextFireTime_BeforeFireTime(t *testing.T) {
	s := &HeadcountSampler{FireHour: 23, FireMinute: 59}
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)

	next := s.nextFireTime(now)
	want := time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextFireTime_AtFireTimeRollsToNextDay(t *testing.T) {
	s := &HeadcountSampler{FireHour: 23, FireMinute: 59}
	now := time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC)

	next := s.nextFireTime(now)
	want := time.Date(2026, time.September, 1, 23, 59, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextFireTime_AfterFireTime(t *testing.T) {
	s := &HeadcountSampler{FireHour: 23, FireMinute: 59}
	now := time.Date(2026, time.August, 31, 23, 59, 30, 0, time.UTC)

	next := s.nextFireTime(now)
	want := time.Date(2026, time.September, 1, 23, 59, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestSampleDate_UsesLocalCalendarDay(t *testing.T) {
	// West of UTC, the 23:59 local tick is already the next day in UTC.
	// The row must still be keyed to the local day the tick fired on.
	loc := time.FixedZone("UTC-5", -5*3600)
	s := &HeadcountSampler{FireHour: 23, FireMinute: 59}

	fire := s.nextFireTime(time.Date(2026, time.August, 31, 10, 0, 0, 0, loc))
	got := s.sampleDate(fire)
	want := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected sample keyed to local day %v, got %v", want, got)
	}
}

func TestNextFireTime_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	s := &HeadcountSampler{FireHour: 23, FireMinute: 59}
	now := time.Date(2026, time.August, 31, 5, 0, 0, 0, loc)

	next := s.nextFireTime(now)
	if next.Location() != loc {
		t.Fatalf("expected fire time in now's location, got %v", next.Location())
	}
	if next.Hour() != 23 || next.Minute() != 59 {
		t.Fatalf("expected 23:59 local, got %02d:%02d", next.Hour(), next.Minute())
	}
}
