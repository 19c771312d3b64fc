package models

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScopeLogEntry is an append-only record of planned-work change. One row is
// written at task creation (delta = initial estimate) and one on every
// estimated-hours change (delta = new - old). Rows are never updated or
// deleted; deleting a task does not remove its history.
type ScopeLogEntry struct {
	ID          int             `gorm:"primary_key" json:"id"`
	TaskId      int             `gorm:"index;not null" json:"task_id"`
	Date        time.Time       `gorm:"type:date;index;not null" json:"date"`
	DeltaHours  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"delta_hours"`
	CreatedById int             `json:"created_by_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// RecordScopeChange appends one ledger entry inside the caller's transaction.
// Negative deltas are valid; they represent scope reduction.
func RecordScopeChange(tx *gorm.DB, taskId int, date time.Time, deltaHours decimal.Decimal, actorId int) error {
	entry := ScopeLogEntry{
		TaskId:      taskId,
		Date:        date,
		DeltaHours:  deltaHours,
		CreatedById: actorId,
	}
	return tx.Create(&entry).Error
}

// SumScopeBefore returns the sum of all deltas dated strictly before the
// cutoff, across all tasks. This is the base scope a month starts with.
func SumScopeBefore(ctx context.Context, cutoff time.Time) (decimal.Decimal, error) {
	db := config.GetDB()
	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&ScopeLogEntry{}).
		Where("date < ?", cutoff).
		Select("SUM(delta_hours)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

type scopeDayRow struct {
	Date  time.Time       `gorm:"column:date"`
	Total decimal.Decimal `gorm:"column:total"`
}

// SumScopeByDay groups in-range deltas by calendar day. Keys are
// "YYYY-MM-DD"; days with no entries are absent from the map.
func SumScopeByDay(ctx context.Context, start time.Time, endExclusive time.Time) (map[string]decimal.Decimal, error) {
	db := config.GetDB()
	var rows []scopeDayRow
	err := db.WithContext(ctx).Model(&ScopeLogEntry{}).
		Where("date >= ? AND date < ?", start, endExclusive).
		Select("date, SUM(delta_hours) AS total").
		Group("date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		result[row.Date.Format("2006-01-02")] = row.Total
	}
	return result, nil
}

// SumScopeForTask returns the task's scope as of the cutoff (inclusive),
// i.e. the replayed sum of its deltas.
func SumScopeForTask(ctx context.Context, taskId int, cutoff time.Time) (decimal.Decimal, error) {
	db := config.GetDB()
	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&ScopeLogEntry{}).
		Where("task_id = ? AND date <= ?", taskId, cutoff).
		Select("SUM(delta_hours)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
