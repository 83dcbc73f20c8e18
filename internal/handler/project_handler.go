package handler

import (
	"errors"
	"net/http"
	"taskhub/internal/audit"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/quota"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"
	"taskhub/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateProject creates a project in the actor's tenant, subject to the
// project quota. Super admins have no tenant and cannot create projects.
func CreateProject(c echo.Context) error {
	log := logger.FromContext(c)
	actor := middleware.CurrentUser(c)

	if err := policy.Authorize(actor, policy.ActionCreateProject, policy.Resource{}); err != nil {
		return deny(c, policy.ActionCreateProject, err)
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Name is required"})
	}

	status := model.ProjectStatus(req.Status)
	if status == "" {
		status = model.ProjectStatusActive
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, "id = ?", *actor.TenantID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to create project"})
	}

	project := model.Project{
		TenantID:    tenant.ID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		CreatedByID: &actor.ID,
	}

	txErr := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := quota.CheckProjects(tx, &tenant); err != nil {
			return err
		}
		return tx.Create(&project).Error
	})
	if txErr != nil {
		var perr *policy.Error
		if errors.As(txErr, &perr) {
			prometheus.RecordQuotaRejection("project")
			return c.JSON(perr.Status, echo.Map{"message": perr.Message})
		}
		log.Error("Failed to create project", zap.Error(txErr))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to create project"})
	}

	audit.Record(c, actor, audit.CreateProject, "project", project.ID.String(), &tenant.ID)

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":          project.ID,
			"name":        project.Name,
			"description": project.Description,
			"status":      project.Status,
			"createdBy":   project.CreatedByID,
			"createdAt":   project.CreatedAt,
		},
	})
}

// ListProjects lists projects with task counts. Super admins see every
// tenant's projects; everyone else sees only their own tenant.
func ListProjects(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	type projectRow struct {
		model.Project
		TaskCount          int64 `gorm:"column:task_count"`
		CompletedTaskCount int64 `gorm:"column:completed_task_count"`
	}

	query := database.GetDB().Model(&model.Project{}).
		Select("projects.*, " +
			"(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id) AS task_count, " +
			"(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id AND tasks.status = 'completed') AS completed_task_count")
	if !actor.IsSuperAdmin() {
		query = query.Where("projects.tenant_id = ?", *actor.TenantID)
	}

	var rows []projectRow
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch projects"})
	}

	// Resolve creator names in one query.
	creatorIDs := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		if rows[i].CreatedByID != nil {
			creatorIDs = append(creatorIDs, *rows[i].CreatedByID)
		}
	}
	creators := map[uuid.UUID]string{}
	if len(creatorIDs) > 0 {
		var users []model.User
		if err := database.GetDB().Where("id IN ?", creatorIDs).Find(&users).Error; err == nil {
			for i := range users {
				creators[users[i].ID] = users[i].FullName
			}
		}
	}

	data := make([]echo.Map, len(rows))
	for i := range rows {
		var createdBy interface{}
		if rows[i].CreatedByID != nil {
			createdBy = creators[*rows[i].CreatedByID]
		}
		data[i] = echo.Map{
			"id":                   rows[i].ID,
			"name":                 rows[i].Name,
			"description":          rows[i].Description,
			"status":               rows[i].Status,
			"created_by":           createdBy,
			"task_count":           rows[i].TaskCount,
			"completed_task_count": rows[i].CompletedTaskCount,
			"created_at":           rows[i].CreatedAt,
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"projects": data,
			"total":    len(data),
		},
	})
}

func loadProject(c echo.Context) (*model.Project, error) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, &policy.Error{Status: http.StatusBadRequest, Message: "Invalid project ID"}
	}
	var project model.Project
	if err := database.GetDB().First(&project, "id = ?", projectID).Error; err != nil {
		return nil, policy.NotFound("Project not found")
	}
	return &project, nil
}

// GetProject returns project details. Any same-tenant user may view.
func GetProject(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	project, err := loadProject(c)
	if err != nil {
		return deny(c, policy.ActionViewProject, err)
	}

	if err := policy.Authorize(actor, policy.ActionViewProject, policy.Resource{Project: project}); err != nil {
		return deny(c, policy.ActionViewProject, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":          project.ID,
			"name":        project.Name,
			"description": project.Description,
			"status":      project.Status,
			"createdBy":   project.CreatedByID,
			"createdAt":   project.CreatedAt,
			"updatedAt":   project.UpdatedAt,
		},
	})
}

// UpdateProject edits a project. Allowed for the creator or a tenant admin.
func UpdateProject(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	project, err := loadProject(c)
	if err != nil {
		return deny(c, policy.ActionEditProject, err)
	}

	if err := policy.Authorize(actor, policy.ActionEditProject, policy.Resource{Project: project}); err != nil {
		return deny(c, policy.ActionEditProject, err)
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		project.Status = model.ProjectStatus(*req.Status)
	}

	if err := database.GetDB().Save(project).Error; err != nil {
		logger.FromContext(c).Error("Failed to update project", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to update project"})
	}

	audit.Record(c, actor, audit.UpdateProject, "project", project.ID.String(), &project.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Project updated successfully",
		"data": echo.Map{
			"name":        project.Name,
			"description": project.Description,
			"status":      project.Status,
		},
	})
}

// DeleteProject deletes a project and its tasks.
func DeleteProject(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	project, err := loadProject(c)
	if err != nil {
		return deny(c, policy.ActionDeleteProject, err)
	}

	if err := policy.Authorize(actor, policy.ActionDeleteProject, policy.Resource{Project: project}); err != nil {
		return deny(c, policy.ActionDeleteProject, err)
	}

	txErr := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if txErr != nil {
		logger.FromContext(c).Error("Failed to delete project", zap.Error(txErr))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to delete project"})
	}

	audit.Record(c, actor, audit.DeleteProject, "project", project.ID.String(), &project.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Project deleted successfully",
	})
}
