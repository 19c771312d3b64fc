package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// ActualLogEntry stores logged hours for one task on one day. Unlike the
// scope ledger this is an upsert table: posting again for the same
// (task, date) overwrites, supporting correction.
type ActualLogEntry struct {
	ID        int             `gorm:"primary_key" json:"id"`
	TaskId    int             `gorm:"not null;uniqueIndex:idx_actual_task_date" json:"task_id"`
	Date      time.Time       `gorm:"type:date;not null;uniqueIndex:idx_actual_task_date" json:"date"`
	Hours     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"hours"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrorNegativeHours = errors.New("hours must not be negative")

// LogTaskHours upserts the entry for (taskId, date) and recomputes the
// task's aggregate actual_hours as the sum over all of its dates.
// Last write wins for the same key.
func LogTaskHours(ctx context.Context, taskId int, dateStr string, hours decimal.Decimal) (*Task, error) {
	if hours.IsNegative() {
		return nil, ErrorNegativeHours
	}
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var task Task
	if err := db.WithContext(ctx).First(&task, taskId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry ActualLogEntry
		err := tx.Where("task_id = ? AND date = ?", taskId, date).Take(&entry).Error
		switch {
		case err == nil:
			if err := tx.Model(&entry).Update("hours", hours).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = ActualLogEntry{TaskId: taskId, Date: date, Hours: hours}
			if err := tx.Create(&entry).Error; err != nil {
				// lost the race on idx_actual_task_date; the row exists now
				if !isDuplicateKeyErr(err) {
					return err
				}
				if err := tx.Model(&ActualLogEntry{}).
					Where("task_id = ? AND date = ?", taskId, date).
					Update("hours", hours).Error; err != nil {
					return err
				}
			}
		default:
			return err
		}

		var total decimal.NullDecimal
		if err := tx.Model(&ActualLogEntry{}).
			Where("task_id = ?", taskId).
			Select("SUM(hours)").
			Scan(&total).Error; err != nil {
			return err
		}
		aggregate := decimal.Zero
		if total.Valid {
			aggregate = total.Decimal
		}
		if err := tx.Model(&Task{}).Where("id = ?", taskId).
			Update("actual_hours", aggregate).Error; err != nil {
			return err
		}
		task.ActualHours = aggregate
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// GetTaskHours returns the stored hours for (taskId, date), or zero if no
// entry exists. Absence is not an error.
func GetTaskHours(ctx context.Context, taskId int, dateStr string) (decimal.Decimal, error) {
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		return decimal.Zero, err
	}

	db := config.GetDB()
	var entry ActualLogEntry
	err = db.WithContext(ctx).Where("task_id = ? AND date = ?", taskId, date).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return entry.Hours, nil
}

type actualDayRow struct {
	Date  time.Time       `gorm:"column:date"`
	Total decimal.Decimal `gorm:"column:total"`
}

// SumActualByDay totals logged hours per calendar day across all tasks.
// Keys are "YYYY-MM-DD"; days with no entries are absent from the map.
func SumActualByDay(ctx context.Context, start time.Time, endExclusive time.Time) (map[string]decimal.Decimal, error) {
	db := config.GetDB()
	var rows []actualDayRow
	err := db.WithContext(ctx).Model(&ActualLogEntry{}).
		Where("date >= ? AND date < ?", start, endExclusive).
		Select("date, SUM(hours) AS total").
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
