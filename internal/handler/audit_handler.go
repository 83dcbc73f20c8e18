package handler

import (
	"net/http"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/pkg/database"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func auditLogRow(entry *model.AuditLog) echo.Map {
	row := echo.Map{
		"id":          entry.ID,
		"tenant":      entry.TenantID,
		"tenant_name": nil,
		"user":        entry.UserID,
		"user_email":  nil,
		"user_name":   nil,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"ip_address":  entry.IPAddress,
		"created_at":  entry.CreatedAt,
	}
	if entry.Tenant != nil {
		row["tenant_name"] = entry.Tenant.Name
	}
	if entry.User != nil {
		row["user_email"] = entry.User.Email
		row["user_name"] = entry.User.FullName
	}
	return row
}

// auditScope narrows the query to what the caller may see. Super admins see
// everything; everyone else sees only their own tenant.
func auditScope(actor *model.User, query *gorm.DB) *gorm.DB {
	if actor.IsSuperAdmin() {
		return query
	}
	return query.Where("tenant_id = ?", *actor.TenantID)
}

// ListAuditLogs returns the audit trail, newest first.
func ListAuditLogs(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	query := auditScope(actor, database.GetDB().Model(&model.AuditLog{}))

	if action := c.QueryParam("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := c.QueryParam("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if userID := c.QueryParam("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if startDate := c.QueryParam("start_date"); startDate != "" {
		if from, err := time.Parse("2006-01-02", startDate); err == nil {
			query = query.Where("created_at >= ?", from)
		}
	}
	if endDate := c.QueryParam("end_date"); endDate != "" {
		if until, err := time.Parse("2006-01-02", endDate); err == nil {
			query = query.Where("created_at < ?", until.AddDate(0, 0, 1))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"message": "Failed to fetch audit logs",
		})
	}

	page, limit := pagination(c, 50)
	if limit > 100 {
		limit = 100
	}

	var logs []model.AuditLog
	if err := query.Preload("Tenant").Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&logs).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"message": "Failed to fetch audit logs",
		})
	}

	rows := make([]echo.Map, len(logs))
	for i := range logs {
		rows[i] = auditLogRow(&logs[i])
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"logs":  rows,
			"total": total,
			"pagination": echo.Map{
				"currentPage": page,
				"totalPages":  totalPages(total, limit),
				"limit":       limit,
			},
		},
	})
}

// GetAuditLog returns a single audit entry, scoped like the list.
func GetAuditLog(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"success": false,
			"message": "Audit log not found",
		})
	}

	var entry model.AuditLog
	query := auditScope(actor, database.GetDB().Preload("Tenant").Preload("User"))
	if err := query.First(&entry, "id = ?", entryID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"success": false,
			"message": "Audit log not found",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    auditLogRow(&entry),
	})
}
