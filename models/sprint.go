package models

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
	"gorm.io/gorm"
)

type Sprint struct {
	ID        int           `gorm:"primary_key" json:"id"`
	ProjectId int           `gorm:"index;not null" json:"project_id"`
	Name      string        `gorm:"size:100;not null" json:"name" binding:"required"`
	StartDate *MyDateString `gorm:"type:date" json:"start_date"`
	EndDate   *MyDateString `gorm:"type:date" json:"end_date"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSprint struct {
	Name      string `json:"name" binding:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func GetSprintsByProject(ctx context.Context, projectId int) ([]*Sprint, error) {
	db := config.GetDB()
	var results []*Sprint
	if err := db.WithContext(ctx).Where("project_id = ?", projectId).
		Order("start_date, id").Find(&results).Error; err != nil {
		return results, err
	}
	return results, nil
}

func CreateSprint(ctx context.Context, projectId int, input *NewSprint) (*Sprint, error) {
	db := config.GetDB()

	if err := utils.ValidateResourceId[Project](ctx, projectId); err != nil {
		return nil, err
	}

	sprint := Sprint{
		ProjectId: projectId,
		Name:      input.Name,
	}
	if input.StartDate != "" {
		d, err := utils.ParseDate(input.StartDate)
		if err != nil {
			return nil, err
		}
		ds := MyDateString(d)
		sprint.StartDate = &ds
	}
	if input.EndDate != "" {
		d, err := utils.ParseDate(input.EndDate)
		if err != nil {
			return nil, err
		}
		ds := MyDateString(d)
		sprint.EndDate = &ds
	}

	if err := db.WithContext(ctx).Create(&sprint).Error; err != nil {
		return nil, err
	}
	return &sprint, nil
}

func UpdateSprint(ctx context.Context, id int, input *NewSprint) (*Sprint, error) {
	db := config.GetDB()
	var sprint Sprint
	if err := db.WithContext(ctx).First(&sprint, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	updates := map[string]interface{}{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.StartDate != "" {
		d, err := utils.ParseDate(input.StartDate)
		if err != nil {
			return nil, err
		}
		updates["start_date"] = d
	}
	if input.EndDate != "" {
		d, err := utils.ParseDate(input.EndDate)
		if err != nil {
			return nil, err
		}
		updates["end_date"] = d
	}
	if len(updates) == 0 {
		return &sprint, nil
	}

	if err := db.WithContext(ctx).Model(&sprint).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &sprint, nil
}

func DeleteSprint(ctx context.Context, id int) (*Sprint, error) {
	db := config.GetDB()
	var sprint Sprint
	if err := db.WithContext(ctx).First(&sprint, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	// tasks keep their rows; they just lose the sprint association
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Task{}).Where("sprint_id = ?", id).
			Update("sprint_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&sprint).Error
	})
	if err != nil {
		return nil, err
	}
	return &sprint, nil
}
