package reports

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
)

type ActualHoursReportResponse struct {
	Labels         []string  `json:"labels"`
	CompletedByDay []float64 `json:"completed_by_day"`
}

// BuildActualHoursReport totals logged hours per calendar day across all
// tasks, zero-filled for days with no entries.
func BuildActualHoursReport(ctx context.Context, month string) (*ActualHoursReportResponse, error) {
	monthStart, err := utils.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	cacheKey := "report:actual-hours:" + month
	if reportCacheEnabled() {
		var cached ActualHoursReportResponse
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}
	started := time.Now()
	defer logSlowReport(ctx, "actual_hours_report", started, map[string]any{"month": month})

	monthEnd := monthStart.AddDate(0, 1, 0)
	actualByDay, err := models.SumActualByDay(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	labels := utils.DayKeys(monthStart)
	completed := make([]float64, len(labels))
	for i, label := range labels {
		completed[i] = actualByDay[label].InexactFloat64()
	}

	response := &ActualHoursReportResponse{
		Labels:         labels,
		CompletedByDay: completed,
	}
	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
