package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
)

type Project struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Key         string    `gorm:"size:20;not null;unique" json:"key" binding:"required"`
	Description string    `gorm:"size:255" json:"description"`
	OwnerId     int       `gorm:"index" json:"owner_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	Name        string `json:"name" binding:"required"`
	Key         string `json:"key" binding:"required"`
	Description string `json:"description"`
}

func GetAllProjects(ctx context.Context) ([]*Project, error) {
	db := config.GetDB()
	var results []*Project
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return results, err
	}
	return results, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	db := config.GetDB()
	var result Project
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	db := config.GetDB()

	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if err := utils.ValidateUnique[Project](ctx, "key", key, 0); err != nil {
		return nil, errors.New("duplicate project key")
	}

	ownerId, _ := utils.GetUserIdFromContext(ctx)

	project := Project{
		Name:        input.Name,
		Key:         key,
		Description: input.Description,
		OwnerId:     ownerId,
	}
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}
