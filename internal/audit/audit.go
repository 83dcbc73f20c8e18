// Package audit records security-relevant actions. Recording is fire and
// forget: a failed write is logged and never fails the request.
package audit

import (
	"taskhub/internal/model"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Audit action constants
const (
	UserLogin    = "USER_LOGIN"
	UserLogout   = "USER_LOGOUT"
	UserRegister = "USER_REGISTER"
	CreateUser   = "CREATE_USER"
	UpdateUser   = "UPDATE_USER"
	DeleteUser   = "DELETE_USER"

	CreateTenant = "CREATE_TENANT"
	UpdateTenant = "UPDATE_TENANT"
	DeleteTenant = "DELETE_TENANT"

	CreateProject = "CREATE_PROJECT"
	UpdateProject = "UPDATE_PROJECT"
	DeleteProject = "DELETE_PROJECT"

	CreateTask       = "CREATE_TASK"
	UpdateTask       = "UPDATE_TASK"
	UpdateTaskStatus = "UPDATE_TASK_STATUS"
	DeleteTask       = "DELETE_TASK"
)

// Record appends an audit log entry for the acting user. The tenant defaults
// to the actor's tenant when nil.
func Record(c echo.Context, actor *model.User, action, entityType, entityID string, tenantID *uuid.UUID) {
	var userID *uuid.UUID
	if actor != nil {
		userID = &actor.ID
		if tenantID == nil {
			tenantID = actor.TenantID
		}
	}

	entry := model.AuditLog{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  c.RealIP(),
	}

	if err := database.GetDB().Create(&entry).Error; err != nil {
		logger.FromContext(c).Error("Failed to write audit log",
			zap.String("action", action),
			zap.Error(err))
	}
}
