package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HeadcountSampler fires once a day at the configured wall-clock time
// (23:59 by default), counts on-duty users per site, and upserts one
// DailyHeadcount row per (site, date). Fire-and-forget: a failed tick is
// logged and skipped, never retried; a missing sample reads as 0 downstream.
type HeadcountSampler struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	SamplerID string

	FireHour   int
	FireMinute int
}

func NewHeadcountSampler(db *gorm.DB, logger *logrus.Logger) *HeadcountSampler {
	return &HeadcountSampler{
		DB:         db,
		Logger:     logger,
		SamplerID:  uuid.NewString(),
		FireHour:   23,
		FireMinute: 59,
	}
}

// nextFireTime returns the next occurrence of the fire time strictly after
// now, in now's location.
func (s *HeadcountSampler) nextFireTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.FireHour, s.FireMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *HeadcountSampler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		next := s.nextFireTime(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		s.SampleOnce(ctx, next)
	}
}

// sampleDate keys the row to the calendar day the tick fired on, in the
// tick's own location. A 23:59 local fire west of UTC is already the next
// day in UTC; converting first would shift the key to tomorrow.
func (s *HeadcountSampler) sampleDate(fireTime time.Time) time.Time {
	return utils.TruncateToDay(fireTime)
}

// SampleOnce takes the sample for the day containing fireTime. Per-site
// failures are logged and skipped so one bad site cannot block the rest.
func (s *HeadcountSampler) SampleOnce(ctx context.Context, fireTime time.Time) {
	date := s.sampleDate(fireTime)
	for _, site := range models.AllSites {
		count, err := models.CountOnDutyUsers(ctx, s.DB, site)
		if err != nil {
			s.logSkip(site, date, err)
			continue
		}
		if err := models.UpsertDailyHeadcount(ctx, s.DB, site, date, count); err != nil {
			s.logSkip(site, date, err)
			continue
		}
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"module":     "workflow",
				"funcName":   "SampleOnce",
				"sampler_id": s.SamplerID,
				"site":       site,
				"date":       date.Format("2006-01-02"),
				"count":      count,
			}).Info("headcount sampled")
		}
	}
}

func (s *HeadcountSampler) logSkip(site models.Site, date time.Time, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"module":     "workflow",
		"funcName":   "SampleOnce",
		"sampler_id": s.SamplerID,
		"site":       site,
		"date":       date.Format("2006-01-02"),
	}).Error("headcount sample skipped: " + err.Error())
}
