package models

import (
	"context"
	"errors"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"gorm.io/gorm"
)

// DailyHeadcount is one on-duty count per site per day, written by the
// 23:59 sampler. Re-running for the same day overwrites the count.
type DailyHeadcount struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Site        Site      `gorm:"type:enum('PQP_HT', 'MT1');not null;uniqueIndex:idx_headcount_site_date" json:"site"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:idx_headcount_site_date" json:"date"`
	OnDutyCount int       `gorm:"not null" json:"on_duty_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertDailyHeadcount writes the sample for (site, date), overwriting any
// existing row for the same key. Takes the caller's DB handle so the sampler
// writes through its injected connection.
func UpsertDailyHeadcount(ctx context.Context, db *gorm.DB, site Site, date time.Time, onDutyCount int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sample DailyHeadcount
		err := tx.Where("site = ? AND date = ?", site, date).Take(&sample).Error
		switch {
		case err == nil:
			return tx.Model(&sample).Update("on_duty_count", onDutyCount).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			sample = DailyHeadcount{Site: site, Date: date, OnDutyCount: onDutyCount}
			if err := tx.Create(&sample).Error; err != nil {
				// lost the race on idx_headcount_site_date; overwrite instead
				if !isDuplicateKeyErr(err) {
					return err
				}
				return tx.Model(&DailyHeadcount{}).
					Where("site = ? AND date = ?", site, date).
					Update("on_duty_count", onDutyCount).Error
			}
			return nil
		default:
			return err
		}
	})
}

type headcountRow struct {
	Site  Site      `gorm:"column:site"`
	Date  time.Time `gorm:"column:date"`
	Count int       `gorm:"column:on_duty_count"`
}

// GetHeadcountByDay returns per-site day→count maps for the given range.
// Missing days are simply absent; downstream reads treat them as 0.
func GetHeadcountByDay(ctx context.Context, start time.Time, endExclusive time.Time) (map[Site]map[string]int, error) {
	db := config.GetDB()
	var rows []headcountRow
	err := db.WithContext(ctx).Model(&DailyHeadcount{}).
		Where("date >= ? AND date < ?", start, endExclusive).
		Select("site, date, on_duty_count").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[Site]map[string]int, len(AllSites))
	for _, site := range AllSites {
		result[site] = make(map[string]int)
	}
	for _, row := range rows {
		if _, ok := result[row.Site]; !ok {
			result[row.Site] = make(map[string]int)
		}
		result[row.Site][row.Date.Format("2006-01-02")] = row.Count
	}
	return result, nil
}
