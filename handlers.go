package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
)

// currentUser resolves the session user (redis cache first, DB fallback).
func currentUser(ctx context.Context) (*models.User, error) {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return nil, errors.New("unauthorized")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return nil, errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return nil, errors.New("unauthorized")
		}
	}
	return &user, nil
}

// authedContext requires a logged-in user and returns the request context
// enriched with the user's id, name and role.
func authedContext(c *gin.Context) (context.Context, *models.User, bool) {
	ctx := c.Request.Context()
	user, err := currentUser(ctx)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, nil, false
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)
	ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
	ctx = utils.SetIsAdminInContext(ctx, user.IsAdmin != nil && *user.IsAdmin)
	return ctx, user, true
}

// requirePermission enforces the role-permission map; admins bypass.
func requirePermission(c *gin.Context, permStore *models.PermissionStore, action string) (context.Context, bool) {
	ctx, user, ok := authedContext(c)
	if !ok {
		return nil, false
	}
	if user.IsAdmin != nil && *user.IsAdmin {
		return ctx, true
	}
	if !permStore.Can(user.Role, action) {
		c.JSON(http.StatusForbidden, gin.H{"error": utils.ErrorPermissionDenied.Error()})
		return nil, false
	}
	return ctx, true
}

func requireAdmin(c *gin.Context) (context.Context, bool) {
	ctx, user, ok := authedContext(c)
	if !ok {
		return nil, false
	}
	if user.IsAdmin == nil || !*user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": utils.ErrorPermissionDenied.Error()})
		return nil, false
	}
	return ctx, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// writeModelError maps model-layer failures onto HTTP statuses.
func writeModelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, utils.ErrInvalidMonth), errors.Is(err, utils.ErrInvalidDate),
		errors.Is(err, models.ErrorNegativeHours):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "handlers.go", "writeModelError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewUser
		if !bindJSON(c, &req) {
			return
		}
		if req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		var req changePasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := models.ChangePassword(ctx, req.OldPassword, req.NewPassword)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func listResourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		users, err := models.GetAllUsers(ctx)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func createResourceHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "resource:manage")
		if !ok {
			return
		}
		var req models.NewUser
		if !bindJSON(c, &req) {
			return
		}
		user, err := models.CreateUser(ctx, &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func updateResourceHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "resource:manage")
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req models.UpdateUserInput
		if !bindJSON(c, &req) {
			return
		}
		user, err := models.UpdateUser(ctx, id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func deleteResourceHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "resource:manage")
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		user, err := models.DeleteUser(ctx, id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func listProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		projects, err := models.GetAllProjects(ctx)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

func createProjectHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "sprint:create")
		if !ok {
			return
		}
		var req models.NewProject
		if !bindJSON(c, &req) {
			return
		}
		project, err := models.CreateProject(ctx, &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, project)
	}
}

func listSprintsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		projectId, ok := pathId(c, "projectId")
		if !ok {
			return
		}
		sprints, err := models.GetSprintsByProject(ctx, projectId)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, sprints)
	}
}

func createSprintHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "sprint:create")
		if !ok {
			return
		}
		projectId, ok := pathId(c, "projectId")
		if !ok {
			return
		}
		var req models.NewSprint
		if !bindJSON(c, &req) {
			return
		}
		sprint, err := models.CreateSprint(ctx, projectId, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sprint)
	}
}

func updateSprintHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "sprint:update")
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req models.NewSprint
		if !bindJSON(c, &req) {
			return
		}
		sprint, err := models.UpdateSprint(ctx, id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, sprint)
	}
}

func deleteSprintHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "sprint:delete")
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		sprint, err := models.DeleteSprint(ctx, id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, sprint)
	}
}

func listTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		var filter models.TaskFilter
		if v := c.Query("year"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
				return
			}
			filter.Year = n
		}
		if v := c.Query("month"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 12 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
				return
			}
			filter.Month = n
		}
		if v := c.Query("sprint_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "sprint_id must be an integer"})
				return
			}
			filter.SprintId = n
		}
		if v := c.Query("status"); v != "" {
			status, err := models.ParseTaskStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filter.Status = status
		}
		tasks, err := models.GetTasks(ctx, filter)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func getTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		task, err := models.GetTask(ctx, id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func createTaskHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "task:create")
		if !ok {
			return
		}
		var req models.NewTask
		if !bindJSON(c, &req) {
			return
		}
		task, err := models.CreateTask(ctx, &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

func updateTaskHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "task:update")
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req models.UpdateTaskInput
		if !bindJSON(c, &req) {
			return
		}
		// reassignment is gated separately from plain edits
		if req.AssigneeId != nil || req.AssignedResourceIds != nil {
			if _, ok := requirePermission(c, permStore, "task:assign"); !ok {
				return
			}
		}
		task, err := models.UpdateTask(ctx, id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func deleteTaskHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requirePermission(c, permStore, "task:delete")
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		task, err := models.DeleteTask(ctx, id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func listCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		comments, err := models.GetCommentsByTask(ctx, id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, comments)
	}
}

func createCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := authedContext(c)
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req models.NewComment
		if !bindJSON(c, &req) {
			return
		}
		comment, err := models.CreateComment(ctx, id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}

func getPermissionsHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		c.JSON(http.StatusOK, permStore.Snapshot())
	}
}

func updatePermissionsHandler(permStore *models.PermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requireAdmin(c)
		if !ok {
			return
		}
		var req models.PermissionMap
		if !bindJSON(c, &req) {
			return
		}
		if len(req) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "permission map is required"})
			return
		}
		if err := permStore.Update(ctx, req); err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, permStore.Snapshot())
	}
}
