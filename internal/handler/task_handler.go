package handler

import (
	"net/http"
	"taskhub/internal/audit"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// taskPriorityOrder sorts high before medium before low.
const taskPriorityOrder = "CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END"

func taskListItem(t *model.Task, assignee *model.User) echo.Map {
	var assignedTo interface{}
	if assignee != nil {
		assignedTo = echo.Map{
			"id":        assignee.ID,
			"full_name": assignee.FullName,
			"email":     assignee.Email,
		}
	}
	return echo.Map{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"priority":    t.Priority,
		"assigned_to": assignedTo,
		"due_date":    t.DueDate,
		"created_at":  t.CreatedAt,
	}
}

func taskItems(tasks []model.Task) []echo.Map {
	// Resolve assignees in one query.
	ids := make([]uuid.UUID, 0, len(tasks))
	for i := range tasks {
		if tasks[i].AssignedToID != nil {
			ids = append(ids, *tasks[i].AssignedToID)
		}
	}
	assignees := map[uuid.UUID]*model.User{}
	if len(ids) > 0 {
		var users []model.User
		if err := database.GetDB().Where("id IN ?", ids).Find(&users).Error; err == nil {
			for i := range users {
				assignees[users[i].ID] = &users[i]
			}
		}
	}

	items := make([]echo.Map, len(tasks))
	for i := range tasks {
		var assignee *model.User
		if tasks[i].AssignedToID != nil {
			assignee = assignees[*tasks[i].AssignedToID]
		}
		items[i] = taskListItem(&tasks[i], assignee)
	}
	return items
}

// CreateTask creates a task under a project. The task inherits the project's
// tenant; an assignee must belong to that same tenant.
func CreateTask(c echo.Context) error {
	log := logger.FromContext(c)
	actor := middleware.CurrentUser(c)

	project, err := loadProject(c)
	if err != nil {
		return deny(c, policy.ActionCreateTask, err)
	}

	if err := policy.Authorize(actor, policy.ActionCreateTask, policy.Resource{Project: project}); err != nil {
		return deny(c, policy.ActionCreateTask, err)
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Priority    string  `json:"priority"`
		AssignedTo  *string `json:"assigned_to"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Title is required"})
	}

	priority := model.TaskPriority(req.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	task := model.Task{
		ProjectID:   project.ID,
		TenantID:    project.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatusTodo,
		Priority:    priority,
	}

	var assignee *model.User
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assigneeID, err := uuid.Parse(*req.AssignedTo)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid assigned user"})
		}
		var user model.User
		if err := database.GetDB().First(&user, "id = ?", assigneeID).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid assigned user"})
		}
		if !user.InTenant(project.TenantID) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Assigned user must belong to same tenant"})
		}
		task.AssignedToID = &user.ID
		assignee = &user
	}

	if req.DueDate != nil && *req.DueDate != "" {
		due, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid due_date"})
		}
		task.DueDate = &due
	}

	if err := database.GetDB().Create(&task).Error; err != nil {
		log.Error("Failed to create task", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to create task"})
	}

	audit.Record(c, actor, audit.CreateTask, "task", task.ID.String(), &task.TenantID)

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    taskListItem(&task, assignee),
	})
}

// ListProjectTasks lists the tasks of a project, filterable by status,
// assignee, priority, and title search.
func ListProjectTasks(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	project, err := loadProject(c)
	if err != nil {
		return deny(c, policy.ActionViewProject, err)
	}

	if err := policy.Authorize(actor, policy.ActionViewProject, policy.Resource{Project: project}); err != nil {
		return deny(c, policy.ActionViewProject, err)
	}

	query := database.GetDB().Where("project_id = ?", project.ID)

	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignedTo := c.QueryParam("assignedTo"); assignedTo != "" {
		query = query.Where("assigned_to_id = ?", assignedTo)
	}
	if priority := c.QueryParam("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if search := c.QueryParam("search"); search != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+search+"%")
	}

	var tasks []model.Task
	if err := query.Order(taskPriorityOrder).Order("due_date ASC").Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch tasks"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"tasks": taskItems(tasks),
			"total": len(tasks),
		},
	})
}

func loadTask(c echo.Context) (*model.Task, error) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, &policy.Error{Status: http.StatusBadRequest, Message: "Invalid task ID"}
	}
	var task model.Task
	if err := database.GetDB().First(&task, "id = ?", taskID).Error; err != nil {
		return nil, policy.NotFound("Task not found")
	}
	return &task, nil
}

// UpdateTaskStatus moves a task through its workflow. Only the assignee or a
// tenant admin may do this.
func UpdateTaskStatus(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	task, err := loadTask(c)
	if err != nil {
		return deny(c, policy.ActionUpdateTaskState, err)
	}

	if err := policy.Authorize(actor, policy.ActionUpdateTaskState, policy.Resource{Task: task}); err != nil {
		return deny(c, policy.ActionUpdateTaskState, err)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}
	status := model.TaskStatus(req.Status)
	if !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid status"})
	}

	task.Status = status
	if err := database.GetDB().Save(task).Error; err != nil {
		logger.FromContext(c).Error("Failed to update task status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to update task"})
	}

	audit.Record(c, actor, audit.UpdateTaskStatus, "task", task.ID.String(), &task.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":        task.ID,
			"status":    task.Status,
			"updatedAt": task.UpdatedAt,
		},
	})
}

// UpdateTask edits task details. Tenant admin only; regular users change
// status through the status endpoint.
func UpdateTask(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	task, err := loadTask(c)
	if err != nil {
		return deny(c, policy.ActionEditTask, err)
	}

	if err := policy.Authorize(actor, policy.ActionEditTask, policy.Resource{Task: task}); err != nil {
		return deny(c, policy.ActionEditTask, err)
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
		AssignedTo  *string `json:"assigned_to"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		if !status.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid status"})
		}
		task.Status = status
	}
	if req.Priority != nil {
		task.Priority = model.TaskPriority(*req.Priority)
	}

	var assignee *model.User
	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			task.AssignedToID = nil
		} else {
			assigneeID, err := uuid.Parse(*req.AssignedTo)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid assigned user"})
			}
			var user model.User
			if err := database.GetDB().First(&user, "id = ?", assigneeID).Error; err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid assigned user"})
			}
			if !user.InTenant(task.TenantID) {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "Assigned user must belong to same tenant"})
			}
			task.AssignedToID = &user.ID
			assignee = &user
		}
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			task.DueDate = nil
		} else {
			due, err := time.Parse("2006-01-02", *req.DueDate)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid due_date"})
			}
			task.DueDate = &due
		}
	}

	if err := database.GetDB().Save(task).Error; err != nil {
		logger.FromContext(c).Error("Failed to update task", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to update task"})
	}

	if assignee == nil && task.AssignedToID != nil {
		var user model.User
		if err := database.GetDB().First(&user, "id = ?", *task.AssignedToID).Error; err == nil {
			assignee = &user
		}
	}

	audit.Record(c, actor, audit.UpdateTask, "task", task.ID.String(), &task.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Task updated successfully",
		"data":    taskListItem(task, assignee),
	})
}

// DeleteTask removes a task. Tenant admin only.
func DeleteTask(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	task, err := loadTask(c)
	if err != nil {
		return deny(c, policy.ActionDeleteTask, err)
	}

	if err := policy.Authorize(actor, policy.ActionDeleteTask, policy.Resource{Task: task}); err != nil {
		return deny(c, policy.ActionDeleteTask, err)
	}

	if err := database.GetDB().Delete(task).Error; err != nil {
		logger.FromContext(c).Error("Failed to delete task", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to delete task"})
	}

	audit.Record(c, actor, audit.DeleteTask, "task", task.ID.String(), &task.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Task deleted successfully",
	})
}

// MyTasks lists the tasks assigned to the caller; super admins see all tasks.
func MyTasks(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	query := database.GetDB().Model(&model.Task{})
	if !actor.IsSuperAdmin() {
		query = query.Where("tenant_id = ? AND assigned_to_id = ?", *actor.TenantID, actor.ID)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []model.Task
	if err := query.Order(taskPriorityOrder).Order("due_date ASC").Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch tasks"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    taskItems(tasks),
	})
}
