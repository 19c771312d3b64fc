package models

import (
	"context"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
)

type Comment struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TaskId    int       `gorm:"index;not null" json:"task_id"`
	AuthorId  int       `gorm:"index" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewComment struct {
	Body string `json:"body" binding:"required"`
}

func GetCommentsByTask(ctx context.Context, taskId int) ([]*Comment, error) {
	db := config.GetDB()
	var results []*Comment
	if err := db.WithContext(ctx).Where("task_id = ?", taskId).
		Order("created_at, id").Find(&results).Error; err != nil {
		return results, err
	}
	return results, nil
}

func CreateComment(ctx context.Context, taskId int, input *NewComment) (*Comment, error) {
	db := config.GetDB()

	if err := utils.ValidateResourceId[Task](ctx, taskId); err != nil {
		return nil, err
	}

	authorId, _ := utils.GetUserIdFromContext(ctx)
	comment := Comment{
		TaskId:   taskId,
		AuthorId: authorId,
		Body:     input.Body,
	}
	if err := db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}
