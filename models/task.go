package models

import (
	"context"
	"errors"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Task struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	ProjectId           int             `gorm:"index" json:"project_id"`
	TaskKey             string          `gorm:"size:50;index" json:"task_key"`
	Title               string          `gorm:"size:255;not null" json:"title"`
	Description         string          `gorm:"type:text" json:"description"`
	Status              TaskStatus      `gorm:"type:enum('TODO', 'IN_PROGRESS', 'UNDER_REVIEW', 'DONE');default:TODO" json:"status"`
	Priority            TaskPriority    `gorm:"type:enum('LOW', 'MEDIUM', 'HIGH');default:MEDIUM" json:"priority"`
	CompletionPercent   *int            `json:"completion_percent"`
	EstimatedHours      decimal.Decimal `gorm:"type:decimal(20,4)" json:"estimated_hours"`
	ActualHours         decimal.Decimal `gorm:"type:decimal(20,4)" json:"actual_hours"`
	StartDate           *MyDateString   `gorm:"type:date" json:"start_date"`
	CompleteDate        *MyDateString   `gorm:"type:date" json:"complete_date"`
	DueDate             *MyDateString   `gorm:"type:date" json:"due_date"`
	SprintId            *int            `gorm:"index" json:"sprint_id"`
	Year                int             `gorm:"index" json:"year"`
	Month               int             `gorm:"index" json:"month"`
	AssigneeId          *int            `gorm:"index" json:"assignee_id"`
	AssignedResourceIds IntList         `gorm:"type:json" json:"assigned_resource_ids"`
	CreatedById         int             `json:"created_by_id"`
	Notes               string          `gorm:"type:text" json:"notes"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTask struct {
	ProjectId           int             `json:"project_id"`
	TaskKey             string          `json:"task_key"`
	Title               string          `json:"title" binding:"required"`
	Description         string          `json:"description"`
	Status              TaskStatus      `json:"status"`
	Priority            TaskPriority    `json:"priority"`
	EstimatedHours      decimal.Decimal `json:"estimated_hours"`
	StartDate           string          `json:"start_date"`
	DueDate             string          `json:"due_date"`
	SprintId            *int            `json:"sprint_id"`
	Year                int             `json:"year"`
	Month               int             `json:"month"`
	AssigneeId          *int            `json:"assignee_id"`
	AssignedResourceIds IntList         `json:"assigned_resource_ids"`
	Notes               string          `json:"notes"`
}

type UpdateTaskInput struct {
	Title               *string          `json:"title"`
	Description         *string          `json:"description"`
	Status              *TaskStatus      `json:"status"`
	Priority            *TaskPriority    `json:"priority"`
	CompletionPercent   *int             `json:"completion_percent"`
	EstimatedHours      *decimal.Decimal `json:"estimated_hours"`
	StartDate           *string          `json:"start_date"`
	CompleteDate        *string          `json:"complete_date"`
	DueDate             *string          `json:"due_date"`
	SprintId            *int             `json:"sprint_id"`
	Year                *int             `json:"year"`
	Month               *int             `json:"month"`
	AssigneeId          *int             `json:"assignee_id"`
	AssignedResourceIds *IntList         `json:"assigned_resource_ids"`
	Notes               *string          `json:"notes"`
}

type TaskFilter struct {
	Year     int
	Month    int
	SprintId int
	Status   TaskStatus
}

// initialScopeDelta is the ledger delta written at task creation.
// An unset or non-positive estimate counts as 1 unit of scope.
func initialScopeDelta(estimatedHours decimal.Decimal) decimal.Decimal {
	if estimatedHours.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(1)
	}
	return estimatedHours
}

func GetTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Task{})
	if filter.Year != 0 {
		dbCtx = dbCtx.Where("year = ?", filter.Year)
	}
	if filter.Month != 0 {
		dbCtx = dbCtx.Where("month = ?", filter.Month)
	}
	if filter.SprintId != 0 {
		dbCtx = dbCtx.Where("sprint_id = ?", filter.SprintId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}

	var results []*Task
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return results, err
	}
	return results, nil
}

func GetTask(ctx context.Context, id int) (*Task, error) {
	db := config.GetDB()
	var result Task
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// GetTaskByKey resolves the human-entered key used on the daily report form.
func GetTaskByKey(ctx context.Context, taskKey string) (*Task, error) {
	db := config.GetDB()
	var result Task
	err := db.WithContext(ctx).Where("task_key = ?", taskKey).Take(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetActiveTasks returns tasks currently in an active status, for the daily
// snapshot. Live state, not historical.
func GetActiveTasks(ctx context.Context) ([]*Task, error) {
	db := config.GetDB()
	var results []*Task
	if err := db.WithContext(ctx).Where("status IN ?", ActiveTaskStatuses).
		Order("id").Find(&results).Error; err != nil {
		return results, err
	}
	return results, nil
}

// CreateTask inserts the task and appends its initial scope delta in the
// same transaction.
func CreateTask(ctx context.Context, input *NewTask) (*Task, error) {
	db := config.GetDB()

	if input.ProjectId != 0 {
		if err := utils.ValidateResourceId[Project](ctx, input.ProjectId); err != nil {
			return nil, errors.New("project not found")
		}
	}
	if input.SprintId != nil && *input.SprintId != 0 {
		if err := utils.ValidateResourceId[Sprint](ctx, *input.SprintId); err != nil {
			return nil, errors.New("sprint not found")
		}
	}
	if len(input.AssignedResourceIds) > 0 {
		if err := utils.ValidateResourcesId[User, int](ctx, input.AssignedResourceIds); err != nil {
			return nil, errors.New("assigned resource not found")
		}
	}

	status := input.Status
	if status == "" {
		status = TaskStatusTodo
	}

	actorId, _ := utils.GetUserIdFromContext(ctx)
	now := time.Now().UTC()
	year, month := input.Year, input.Month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	task := Task{
		ProjectId:           input.ProjectId,
		TaskKey:             input.TaskKey,
		Title:               input.Title,
		Description:         input.Description,
		Status:              status,
		Priority:            input.Priority.OrDefault(),
		EstimatedHours:      input.EstimatedHours,
		ActualHours:         decimal.Zero,
		SprintId:            input.SprintId,
		Year:                year,
		Month:               month,
		AssigneeId:          input.AssigneeId,
		AssignedResourceIds: input.AssignedResourceIds,
		CreatedById:         actorId,
		Notes:               input.Notes,
	}
	if input.StartDate != "" {
		d, err := utils.ParseDate(input.StartDate)
		if err != nil {
			return nil, err
		}
		ds := MyDateString(d)
		task.StartDate = &ds
	}
	if input.DueDate != "" {
		d, err := utils.ParseDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		ds := MyDateString(d)
		task.DueDate = &ds
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		today := utils.TruncateToDay(now)
		return RecordScopeChange(tx, task.ID, today, initialScopeDelta(input.EstimatedHours), actorId)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask patches the task; an estimated-hours change also appends a
// scope delta (new - old) dated today, in the same transaction.
func UpdateTask(ctx context.Context, id int, input *UpdateTaskInput) (*Task, error) {
	db := config.GetDB()
	var task Task
	if err := db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if input.SprintId != nil && *input.SprintId != 0 {
		if err := utils.ValidateResourceId[Sprint](ctx, *input.SprintId); err != nil {
			return nil, errors.New("sprint not found")
		}
	}
	if input.AssignedResourceIds != nil && len(*input.AssignedResourceIds) > 0 {
		if err := utils.ValidateResourcesId[User, int](ctx, *input.AssignedResourceIds); err != nil {
			return nil, errors.New("assigned resource not found")
		}
	}
	if input.CompletionPercent != nil && (*input.CompletionPercent < 0 || *input.CompletionPercent > 100) {
		return nil, errors.New("completion percent must be between 0 and 100")
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Priority != nil {
		updates["priority"] = input.Priority.OrDefault()
	}
	if input.CompletionPercent != nil {
		updates["completion_percent"] = *input.CompletionPercent
	}
	if input.SprintId != nil {
		updates["sprint_id"] = *input.SprintId
	}
	if input.Year != nil {
		updates["year"] = *input.Year
	}
	if input.Month != nil {
		updates["month"] = *input.Month
	}
	if input.AssigneeId != nil {
		updates["assignee_id"] = *input.AssigneeId
	}
	if input.AssignedResourceIds != nil {
		updates["assigned_resource_ids"] = *input.AssignedResourceIds
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.StartDate != nil {
		d, err := utils.ParseDate(*input.StartDate)
		if err != nil {
			return nil, err
		}
		updates["start_date"] = d
	}
	if input.CompleteDate != nil {
		d, err := utils.ParseDate(*input.CompleteDate)
		if err != nil {
			return nil, err
		}
		updates["complete_date"] = d
	}
	if input.DueDate != nil {
		d, err := utils.ParseDate(*input.DueDate)
		if err != nil {
			return nil, err
		}
		updates["due_date"] = d
	}

	var scopeDelta decimal.Decimal
	hasScopeDelta := false
	if input.EstimatedHours != nil && !input.EstimatedHours.Equal(task.EstimatedHours) {
		updates["estimated_hours"] = *input.EstimatedHours
		scopeDelta = input.EstimatedHours.Sub(task.EstimatedHours)
		hasScopeDelta = true
	}

	if len(updates) == 0 {
		return &task, nil
	}

	actorId, _ := utils.GetUserIdFromContext(ctx)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return err
		}
		if hasScopeDelta {
			today := utils.TruncateToDay(time.Now().UTC())
			return RecordScopeChange(tx, task.ID, today, scopeDelta, actorId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes the task row and its effort entries. Scope-ledger
// history stays: historical scope still includes deleted tasks.
func DeleteTask(ctx context.Context, id int) (*Task, error) {
	db := config.GetDB()
	var task Task
	if err := db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&ActualLogEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}
