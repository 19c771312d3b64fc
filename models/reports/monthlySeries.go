package reports

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/shopspring/decimal"
)

// ScopeChange annotates a day where the scope ledger recorded a nonzero
// delta: the cumulative scope after the change and the change itself.
type ScopeChange struct {
	Day   string          `json:"day"`
	Value decimal.Decimal `json:"value"`
	Delta decimal.Decimal `json:"delta"`
}

// MonthlySeries holds every per-day curve for one month. Burndown plots
// Remaining vs IdealRemaining; burnup plots Completed vs Scope. All slices
// share the Labels axis, one element per calendar day.
type MonthlySeries struct {
	Labels         []string
	Scope          []decimal.Decimal
	CompletedByDay []decimal.Decimal
	Completed      []decimal.Decimal
	Remaining      []decimal.Decimal
	IdealRemaining []decimal.Decimal
	Changes        []ScopeChange
}

// ComputeMonthlySeries replays the pre-aggregated ledger inputs into the
// month's chart series. Pure function: monthStart names the month,
// baseScope is the delta sum before it, scopeDeltas/actualByDay are keyed
// by "YYYY-MM-DD" and zero-filled for missing days.
//
// Invariants kept here:
//   - remaining[i] + completed[i] == scope[i] for every day, because the
//     cumulative completed value is clamped to that day's scope
//   - idealRemaining is monotonically non-increasing, a straight line from
//     full starting scope to zero on the last day
func ComputeMonthlySeries(monthStart time.Time, baseScope decimal.Decimal, scopeDeltas map[string]decimal.Decimal, actualByDay map[string]decimal.Decimal) *MonthlySeries {
	labels := utils.DayKeys(monthStart)
	days := len(labels)

	series := &MonthlySeries{
		Labels:         labels,
		Scope:          make([]decimal.Decimal, days),
		CompletedByDay: make([]decimal.Decimal, days),
		Completed:      make([]decimal.Decimal, days),
		Remaining:      make([]decimal.Decimal, days),
		IdealRemaining: make([]decimal.Decimal, days),
		Changes:        []ScopeChange{},
	}

	runningScope := baseScope
	runningCompleted := decimal.Zero
	for i, label := range labels {
		if delta, ok := scopeDeltas[label]; ok && !delta.IsZero() {
			runningScope = runningScope.Add(delta)
			series.Changes = append(series.Changes, ScopeChange{
				Day:   label,
				Value: runningScope,
				Delta: delta,
			})
		}
		series.Scope[i] = runningScope

		logged := actualByDay[label]
		series.CompletedByDay[i] = logged
		runningCompleted = runningCompleted.Add(logged)

		completed := runningCompleted
		if completed.GreaterThan(runningScope) {
			completed = runningScope
		}
		series.Completed[i] = completed

		remaining := runningScope.Sub(completed)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		series.Remaining[i] = remaining
	}

	// straight-line ideal burndown from day-1 scope to zero
	startScope := decimal.Zero
	if days > 0 {
		startScope = series.Scope[0]
	}
	daysDec := decimal.NewFromInt(int64(days))
	for i := range labels {
		day := decimal.NewFromInt(int64(i + 1))
		ideal := startScope.Sub(startScope.Div(daysDec).Mul(day))
		if ideal.IsNegative() {
			ideal = decimal.Zero
		}
		series.IdealRemaining[i] = ideal
	}

	return series
}

type MonthlySeriesResponse struct {
	Labels         []string        `json:"labels"`
	Scope          []float64       `json:"scope"`
	CompletedByDay []float64       `json:"completed_by_day"`
	Completed      []float64       `json:"completed"`
	Remaining      []float64       `json:"remaining"`
	IdealRemaining []float64       `json:"ideal_remaining"`
	Changes        []ScopeChangeDF `json:"changes"`
}

type ScopeChangeDF struct {
	Day   string  `json:"day"`
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

func floats(values []decimal.Decimal) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = v.InexactFloat64()
	}
	return result
}

func (s *MonthlySeries) ToResponse() *MonthlySeriesResponse {
	changes := make([]ScopeChangeDF, len(s.Changes))
	for i, c := range s.Changes {
		changes[i] = ScopeChangeDF{
			Day:   c.Day,
			Value: c.Value.InexactFloat64(),
			Delta: c.Delta.InexactFloat64(),
		}
	}
	return &MonthlySeriesResponse{
		Labels:         s.Labels,
		Scope:          floats(s.Scope),
		CompletedByDay: floats(s.CompletedByDay),
		Completed:      floats(s.Completed),
		Remaining:      floats(s.Remaining),
		IdealRemaining: floats(s.IdealRemaining),
		Changes:        changes,
	}
}

// BuildMonthlySeries replays both ledgers for the month and computes every
// chart curve. Invoked on read; cached briefly when the report cache is on.
func BuildMonthlySeries(ctx context.Context, month string) (*MonthlySeriesResponse, error) {
	monthStart, err := utils.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	cacheKey := "report:monthly:" + month
	if reportCacheEnabled() {
		var cached MonthlySeriesResponse
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}
	started := time.Now()
	defer logSlowReport(ctx, "monthly_series", started, map[string]any{"month": month})

	monthEnd := monthStart.AddDate(0, 1, 0)

	baseScope, err := models.SumScopeBefore(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	scopeDeltas, err := models.SumScopeByDay(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	actualByDay, err := models.SumActualByDay(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	response := ComputeMonthlySeries(monthStart, baseScope, scopeDeltas, actualByDay).ToResponse()

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
