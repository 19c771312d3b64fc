package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/models/reports"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/shopspring/decimal"
)

func monthParam(c *gin.Context) (string, bool) {
	month := c.Query("month")
	if _, err := utils.ParseMonth(month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return month, true
}

func dateParam(c *gin.Context) (string, bool) {
	date := c.Query("date")
	if _, err := utils.ParseDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return date, true
}

func actualHoursReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		month, ok := monthParam(c)
		if !ok {
			return
		}
		report, err := reports.BuildActualHoursReport(ctx, month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func scopeReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		month, ok := monthParam(c)
		if !ok {
			return
		}
		report, err := reports.BuildScopeReport(ctx, month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func headcountReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		month, ok := monthParam(c)
		if !ok {
			return
		}
		report, err := reports.BuildHeadcountReport(ctx, month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func monthlyReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		month, ok := monthParam(c)
		if !ok {
			return
		}
		ctx, span := tracer.Start(ctx, "monthly_report")
		defer span.End()
		report, err := reports.BuildMonthlySeries(ctx, month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func dailyReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		date, ok := dateParam(c)
		if !ok {
			return
		}
		snapshot, err := models.GetDailySnapshot(ctx, date)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

type generateDailyReportRequest struct {
	Date string `json:"date"`
}

func generateDailyReportHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "sprint:report")
		if !ok {
			return
		}
		var req generateDailyReportRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		if req.Date == "" {
			req.Date = utils.DateKey(time.Now().UTC())
		}
		snapshot, err := models.GenerateDailySnapshot(ctx, req.Date)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func dailyReportLookupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		key := c.Query("key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
			return
		}
		task, err := models.GetTaskByKey(ctx, key)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SummarizeTask(task))
	}
}

type addDailyReportTaskRequest struct {
	Date        string `json:"date" binding:"required"`
	TaskKey     string `json:"task_key" binding:"required"`
	Description string `json:"description"`
}

func addDailyReportTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		var req addDailyReportTaskRequest
		if !bindJSON(c, &req) {
			return
		}
		snapshot, err := models.AddSnapshotTask(ctx, req.Date, req.TaskKey, req.Description)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

type removeDailyReportTaskRequest struct {
	Date string `json:"date" binding:"required"`
	// ad hoc entries carry id 0, so "required" would make them unremovable
	TaskId int `json:"task_id"`
}

func removeDailyReportTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		var req removeDailyReportTaskRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.TaskId < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task_id must not be negative"})
			return
		}
		snapshot, err := models.RemoveSnapshotTask(ctx, req.Date, req.TaskId)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

type logHoursRequest struct {
	Date  string          `json:"date" binding:"required"`
	Hours decimal.Decimal `json:"hours"`
}

func logTaskHoursHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req logHoursRequest
		if !bindJSON(c, &req) {
			return
		}
		task, err := models.LogTaskHours(ctx, id, req.Date, req.Hours)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func getTaskHoursHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		date, ok := dateParam(c)
		if !ok {
			return
		}
		hours, err := models.GetTaskHours(ctx, id, date)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "hours": hours.InexactFloat64()})
	}
}
