package reports

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
)

type SiteHeadcountSeries struct {
	Site   models.Site `json:"site"`
	Series []int       `json:"series"`
}

type HeadcountReportResponse struct {
	Labels []string              `json:"labels"`
	Sites  []SiteHeadcountSeries `json:"sites"`
}

// BuildHeadcountReport renders the sampler's daily counts per site for one
// month. Days the sampler missed read as 0.
func BuildHeadcountReport(ctx context.Context, month string) (*HeadcountReportResponse, error) {
	monthStart, err := utils.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	cacheKey := "report:headcount:" + month
	if reportCacheEnabled() {
		var cached HeadcountReportResponse
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}
	started := time.Now()
	defer logSlowReport(ctx, "headcount_report", started, map[string]any{"month": month})

	monthEnd := monthStart.AddDate(0, 1, 0)
	samples, err := models.GetHeadcountByDay(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	labels := utils.DayKeys(monthStart)
	sites := make([]SiteHeadcountSeries, 0, len(models.AllSites))
	for _, site := range models.AllSites {
		series := make([]int, len(labels))
		for i, label := range labels {
			series[i] = samples[site][label]
		}
		sites = append(sites, SiteHeadcountSeries{Site: site, Series: series})
	}

	response := &HeadcountReportResponse{
		Labels: labels,
		Sites:  sites,
	}
	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
