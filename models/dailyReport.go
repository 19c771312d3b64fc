package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
	"gorm.io/gorm"
)

// TaskSummary is the one task-summary shape shared by reportTasks and
// nextdayTasks. Defaulting lives in SummarizeTask only.
type TaskSummary struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	CompletionPercent   *int         `json:"completion_percent"`
	Priority            TaskPriority `json:"priority"`
	AssignedResourceIds []int        `json:"assigned_resource_ids"`
}

// TaskSummaryList stores an ordered []TaskSummary as a JSON column.
type TaskSummaryList []TaskSummary

func (l TaskSummaryList) Value() (driver.Value, error) {
	if l == nil {
		l = TaskSummaryList{}
	}
	return json.Marshal(l)
}

func (l *TaskSummaryList) Scan(value interface{}) error {
	if value == nil {
		*l = TaskSummaryList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot convert %T to TaskSummaryList", value)
	}
}

type DailyReportSnapshot struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Date          time.Time       `gorm:"type:date;not null;unique" json:"-"`
	ReportTasks   TaskSummaryList `gorm:"type:json" json:"report_tasks"`
	NextdayTasks  TaskSummaryList `gorm:"type:json" json:"nextday_tasks"`
	GeneratedById int             `json:"generated_by_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// DailySnapshotResponse is the wire shape; a missing snapshot renders as an
// empty shell, never an error. GeneratedById/GeneratedAt are nil on the
// shell since nothing generated it.
type DailySnapshotResponse struct {
	Date          string          `json:"date"`
	ReportTasks   TaskSummaryList `json:"report_tasks"`
	NextdayTasks  TaskSummaryList `json:"nextday_tasks"`
	GeneratedById *int            `json:"generated_by_id"`
	GeneratedAt   *time.Time      `json:"generated_at"`
}

// SummarizeTask maps a task to its summary record: completion percent
// defaults to 0, priority to MEDIUM, resource list to empty.
func SummarizeTask(task *Task) TaskSummary {
	completion := 0
	if task.CompletionPercent != nil {
		completion = *task.CompletionPercent
	}
	resourceIds := []int(task.AssignedResourceIds)
	if resourceIds == nil {
		resourceIds = []int{}
	}
	return TaskSummary{
		ID:                  task.ID,
		Title:               task.Title,
		Description:         task.Description,
		CompletionPercent:   &completion,
		Priority:            task.Priority.OrDefault(),
		AssignedResourceIds: resourceIds,
	}
}

// BuildDailySnapshot derives one day's report from the previous day's
// forecast and the tasks active right now:
//   - reportTasks  = carried-forward entries (position and captured
//     completion kept) plus active tasks not already carried forward
//   - nextdayTasks = active tasks with completion nulled out, since their
//     progress is not yet known
//
// Pure function; the date wiring stays in GenerateDailySnapshot.
func BuildDailySnapshot(carriedForward TaskSummaryList, activeTasks []*Task) (reportTasks TaskSummaryList, nextdayTasks TaskSummaryList) {
	reportTasks = make(TaskSummaryList, 0, len(carriedForward)+len(activeTasks))
	nextdayTasks = make(TaskSummaryList, 0, len(activeTasks))

	seen := make(map[int]bool, len(carriedForward))
	for _, summary := range carriedForward {
		seen[summary.ID] = true
		reportTasks = append(reportTasks, summary)
	}

	for _, task := range activeTasks {
		summary := SummarizeTask(task)
		if !seen[summary.ID] {
			reportTasks = append(reportTasks, summary)
		}

		forecast := summary
		forecast.CompletionPercent = nil
		nextdayTasks = append(nextdayTasks, forecast)
	}

	return reportTasks, nextdayTasks
}

func (s *DailyReportSnapshot) ToResponse() *DailySnapshotResponse {
	reportTasks := s.ReportTasks
	if reportTasks == nil {
		reportTasks = TaskSummaryList{}
	}
	nextdayTasks := s.NextdayTasks
	if nextdayTasks == nil {
		nextdayTasks = TaskSummaryList{}
	}
	generatedById := s.GeneratedById
	generatedAt := s.UpdatedAt
	return &DailySnapshotResponse{
		Date:          s.Date.Format("2006-01-02"),
		ReportTasks:   reportTasks,
		NextdayTasks:  nextdayTasks,
		GeneratedById: &generatedById,
		GeneratedAt:   &generatedAt,
	}
}

func emptySnapshotShell(dateStr string) *DailySnapshotResponse {
	return &DailySnapshotResponse{
		Date:         dateStr,
		ReportTasks:  TaskSummaryList{},
		NextdayTasks: TaskSummaryList{},
	}
}

// GetDailySnapshot returns the stored snapshot for the date, or an empty
// shell if none exists.
func GetDailySnapshot(ctx context.Context, dateStr string) (*DailySnapshotResponse, error) {
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var snapshot DailyReportSnapshot
	err = db.WithContext(ctx).Where("date = ?", date).Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptySnapshotShell(utils.DateKey(date)), nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot.ToResponse(), nil
}

// GenerateDailySnapshot recomputes the snapshot for the date from the
// previous day's forecast and currently-active tasks, replacing any
// existing row. Serialized per date with a redis lock so two actors
// generating the same day cannot interleave their read and write.
func GenerateDailySnapshot(ctx context.Context, dateStr string) (*DailySnapshotResponse, error) {
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, "lock:snapshot:"+utils.DateKey(date), 30*time.Second, nil)
		if err == nil {
			defer lock.Release(ctx)
		} else if err != redislock.ErrNotObtained {
			return nil, err
		}
		// ErrNotObtained: proceed anyway; last write wins at the row level.
	}

	db := config.GetDB()

	// read D-1's forecast; absent means empty carry-forward, not an error
	var prev DailyReportSnapshot
	carriedForward := TaskSummaryList{}
	err = db.WithContext(ctx).Where("date = ?", date.AddDate(0, 0, -1)).Take(&prev).Error
	if err == nil {
		carriedForward = prev.NextdayTasks
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	activeTasks, err := GetActiveTasks(ctx)
	if err != nil {
		return nil, err
	}

	reportTasks, nextdayTasks := BuildDailySnapshot(carriedForward, activeTasks)

	actorId, _ := utils.GetUserIdFromContext(ctx)
	var snapshot DailyReportSnapshot
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("date = ?", date).Take(&snapshot).Error
		switch {
		case err == nil:
			snapshot.ReportTasks = reportTasks
			snapshot.NextdayTasks = nextdayTasks
			snapshot.GeneratedById = actorId
			return tx.Save(&snapshot).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			snapshot = DailyReportSnapshot{
				Date:          date,
				ReportTasks:   reportTasks,
				NextdayTasks:  nextdayTasks,
				GeneratedById: actorId,
			}
			return tx.Create(&snapshot).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return snapshot.ToResponse(), nil
}

// AddSnapshotTask appends one entry to the date's reportTasks, creating the
// snapshot row if absent. The task is resolved by its human-entered key;
// when no task matches, the caller-supplied description is used as-is so
// untracked ad hoc work can still appear on the report.
func AddSnapshotTask(ctx context.Context, dateStr string, taskKey string, description string) (*DailySnapshotResponse, error) {
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	var entry TaskSummary
	task, err := GetTaskByKey(ctx, taskKey)
	switch {
	case err == nil:
		entry = SummarizeTask(task)
		if description != "" {
			entry.Description = description
		}
	case errors.Is(err, utils.ErrorRecordNotFound):
		if description == "" {
			return nil, utils.ErrorRecordNotFound
		}
		entry = TaskSummary{
			Title:               taskKey,
			Description:         description,
			Priority:            TaskPriorityMedium,
			AssignedResourceIds: []int{},
		}
	default:
		return nil, err
	}

	db := config.GetDB()
	var snapshot DailyReportSnapshot
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("date = ?", date).Take(&snapshot).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			actorId, _ := utils.GetUserIdFromContext(ctx)
			snapshot = DailyReportSnapshot{
				Date:          date,
				ReportTasks:   TaskSummaryList{entry},
				NextdayTasks:  TaskSummaryList{},
				GeneratedById: actorId,
			}
			return tx.Create(&snapshot).Error
		case err != nil:
			return err
		}

		if entry.ID != 0 {
			for _, existing := range snapshot.ReportTasks {
				if existing.ID == entry.ID {
					return nil
				}
			}
		}
		snapshot.ReportTasks = append(snapshot.ReportTasks, entry)
		return tx.Model(&snapshot).Update("report_tasks", snapshot.ReportTasks).Error
	})
	if err != nil {
		return nil, err
	}
	return snapshot.ToResponse(), nil
}

// RemoveSnapshotTask drops the first entry matching the task id from
// reportTasks. Real task ids are unique on the list; ad hoc entries all
// carry id 0 and are removed one at a time. No-op if the date has no
// snapshot or the id is not present.
func RemoveSnapshotTask(ctx context.Context, dateStr string, taskId int) (*DailySnapshotResponse, error) {
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var snapshot DailyReportSnapshot
	err = db.WithContext(ctx).Where("date = ?", date).Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptySnapshotShell(utils.DateKey(date)), nil
	}
	if err != nil {
		return nil, err
	}

	filtered := make(TaskSummaryList, 0, len(snapshot.ReportTasks))
	removed := false
	for _, entry := range snapshot.ReportTasks {
		if !removed && entry.ID == taskId {
			removed = true
			continue
		}
		filtered = append(filtered, entry)
	}
	if !removed {
		return snapshot.ToResponse(), nil
	}

	snapshot.ReportTasks = filtered
	if err := db.WithContext(ctx).Model(&snapshot).Update("report_tasks", filtered).Error; err != nil {
		return nil, err
	}
	return snapshot.ToResponse(), nil
}
