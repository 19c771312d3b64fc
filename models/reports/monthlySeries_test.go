package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. ComputeMonthlySeries is a pure
// replay of pre-aggregated ledger inputs, so the chart invariants can be
// checked without MySQL. BuildMonthlySeries wiring is covered by the gated
// integration tests under models.

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeMonthlySeries_RemainingPlusCompletedEqualsScope(t *testing.T) {
	monthStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	scopeDeltas := map[string]decimal.Decimal{
		"2026-02-03": d(16),
		"2026-02-10": d(-4),
		"2026-02-20": d(8),
	}
	actualByDay := map[string]decimal.Decimal{
		"2026-02-02": d(6),
		"2026-02-03": d(5),
		"2026-02-11": d(12),
		"2026-02-25": d(30), // pushes cumulative past scope
	}

	series := ComputeMonthlySeries(monthStart, d(40), scopeDeltas, actualByDay)

	if len(series.Labels) != 28 {
		t.Fatalf("expected 28 labels for 2026-02, got %d", len(series.Labels))
	}
	for i, label := range series.Labels {
		sum := series.Remaining[i].Add(series.Completed[i])
		if !sum.Equal(series.Scope[i]) {
			t.Fatalf("day %s: remaining(%s) + completed(%s) != scope(%s)",
				label, series.Remaining[i], series.Completed[i], series.Scope[i])
		}
		if series.Remaining[i].IsNegative() {
			t.Fatalf("day %s: negative remaining %s", label, series.Remaining[i])
		}
		if i > 0 && series.Completed[i].LessThan(series.Completed[i-1]) {
			t.Fatalf("day %s: completed decreased from %s to %s",
				label, series.Completed[i-1], series.Completed[i])
		}
	}
}

func TestComputeMonthlySeries_ClampsCompletedToScope(t *testing.T) {
	monthStart := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	// 10 units of scope, 25 hours logged: completed must cap at 10.
	actualByDay := map[string]decimal.Decimal{
		"2026-04-05": d(25),
	}
	series := ComputeMonthlySeries(monthStart, d(10), nil, actualByDay)

	last := len(series.Labels) - 1
	if !series.Completed[last].Equal(d(10)) {
		t.Fatalf("expected completed clamped to 10, got %s", series.Completed[last])
	}
	if !series.Remaining[last].IsZero() {
		t.Fatalf("expected remaining floored at 0, got %s", series.Remaining[last])
	}
	// CompletedByDay keeps the raw logged value, only the cumulative clamps.
	if !series.CompletedByDay[4].Equal(d(25)) {
		t.Fatalf("expected raw logged value 25 on day 5, got %s", series.CompletedByDay[4])
	}
}

func TestComputeMonthlySeries_ScopeChangeMarkers(t *testing.T) {
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	scopeDeltas := map[string]decimal.Decimal{
		"2026-03-04": d(5),
		"2026-03-09": decimal.Zero, // zero delta must not produce a marker
		"2026-03-15": d(-3),
	}
	series := ComputeMonthlySeries(monthStart, d(20), scopeDeltas, nil)

	if len(series.Changes) != 2 {
		t.Fatalf("expected 2 change markers, got %d", len(series.Changes))
	}
	first := series.Changes[0]
	if first.Day != "2026-03-04" || !first.Delta.Equal(d(5)) || !first.Value.Equal(d(25)) {
		t.Fatalf("unexpected first marker: %+v", first)
	}
	second := series.Changes[1]
	if second.Day != "2026-03-15" || !second.Delta.Equal(d(-3)) || !second.Value.Equal(d(22)) {
		t.Fatalf("unexpected second marker: %+v", second)
	}

	// scope curve steps on the change days and stays flat between them
	if !series.Scope[0].Equal(d(20)) || !series.Scope[2].Equal(d(20)) {
		t.Fatalf("expected base scope 20 before first change, got %s / %s", series.Scope[0], series.Scope[2])
	}
	if !series.Scope[3].Equal(d(25)) || !series.Scope[13].Equal(d(25)) {
		t.Fatalf("expected scope 25 between changes, got %s / %s", series.Scope[3], series.Scope[13])
	}
	if !series.Scope[14].Equal(d(22)) || !series.Scope[30].Equal(d(22)) {
		t.Fatalf("expected scope 22 after second change, got %s / %s", series.Scope[14], series.Scope[30])
	}
}

func TestComputeMonthlySeries_IdealLineReachesZero(t *testing.T) {
	// 28 units over 28 days: ideal drops exactly 1 per day.
	monthStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	series := ComputeMonthlySeries(monthStart, d(28), nil, nil)

	for i := range series.Labels {
		want := d(int64(28 - (i + 1)))
		if !series.IdealRemaining[i].Equal(want) {
			t.Fatalf("day %d: expected ideal %s, got %s", i+1, want, series.IdealRemaining[i])
		}
		if i > 0 && series.IdealRemaining[i].GreaterThan(series.IdealRemaining[i-1]) {
			t.Fatalf("day %d: ideal line increased", i+1)
		}
	}
	if !series.IdealRemaining[len(series.Labels)-1].IsZero() {
		t.Fatalf("expected ideal line to end at 0")
	}
}

func TestComputeMonthlySeries_EmptyMonth(t *testing.T) {
	monthStart := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	series := ComputeMonthlySeries(monthStart, decimal.Zero, nil, nil)

	if len(series.Labels) != 31 {
		t.Fatalf("expected 31 labels for 2026-01, got %d", len(series.Labels))
	}
	if len(series.Changes) != 0 {
		t.Fatalf("expected no change markers, got %d", len(series.Changes))
	}
	for i := range series.Labels {
		if !series.Scope[i].IsZero() || !series.Remaining[i].IsZero() || !series.IdealRemaining[i].IsZero() {
			t.Fatalf("day %d: expected all-zero series on empty month", i+1)
		}
	}
}

func TestMonthlySeriesToResponse(t *testing.T) {
	monthStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	scopeDeltas := map[string]decimal.Decimal{"2026-02-02": d(3)}
	resp := ComputeMonthlySeries(monthStart, d(7), scopeDeltas, nil).ToResponse()

	if len(resp.Scope) != 28 || len(resp.Remaining) != 28 || len(resp.IdealRemaining) != 28 {
		t.Fatalf("response slice lengths mismatch: %d/%d/%d", len(resp.Scope), len(resp.Remaining), len(resp.IdealRemaining))
	}
	if resp.Scope[0] != 7 || resp.Scope[1] != 10 {
		t.Fatalf("expected scope [7, 10, ...], got [%v, %v, ...]", resp.Scope[0], resp.Scope[1])
	}
	if len(resp.Changes) != 1 || resp.Changes[0].Day != "2026-02-02" || resp.Changes[0].Delta != 3 {
		t.Fatalf("unexpected changes: %+v", resp.Changes)
	}
}
