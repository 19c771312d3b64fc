package reports

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
)

type ScopeReportResponse struct {
	Labels     []string        `json:"labels"`
	ScopeByDay []float64       `json:"scope_by_day"`
	Changes    []ScopeChangeDF `json:"changes"`
}

// BuildScopeReport replays the scope ledger into the month's day-by-day
// scope curve with change markers.
func BuildScopeReport(ctx context.Context, month string) (*ScopeReportResponse, error) {
	monthStart, err := utils.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	cacheKey := "report:scope:" + month
	if reportCacheEnabled() {
		var cached ScopeReportResponse
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}
	started := time.Now()
	defer logSlowReport(ctx, "scope_report", started, map[string]any{"month": month})

	monthEnd := monthStart.AddDate(0, 1, 0)

	baseScope, err := models.SumScopeBefore(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	scopeDeltas, err := models.SumScopeByDay(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	series := ComputeMonthlySeries(monthStart, baseScope, scopeDeltas, nil)
	full := series.ToResponse()

	response := &ScopeReportResponse{
		Labels:     full.Labels,
		ScopeByDay: full.Scope,
		Changes:    full.Changes,
	}
	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
