package handler

import (
	"errors"
	"net/http"
	"taskhub/internal/audit"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"
	"taskhub/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func tenantDetail(t *model.Tenant) echo.Map {
	return echo.Map{
		"id":               t.ID,
		"name":             t.Name,
		"subdomain":        t.Subdomain,
		"status":           t.Status,
		"subscriptionPlan": t.SubscriptionPlan,
		"maxUsers":         t.MaxUsers,
		"maxProjects":      t.MaxProjects,
		"createdAt":        t.CreatedAt,
		"updatedAt":        t.UpdatedAt,
	}
}

// ListTenants lists all tenants with usage stats. Super admin only.
func ListTenants(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	if err := policy.Authorize(actor, policy.ActionListTenants, policy.Resource{}); err != nil {
		var perr *policy.Error
		if errors.As(err, &perr) {
			prometheus.RecordPolicyDenial(string(policy.ActionListTenants))
			return c.JSON(perr.Status, echo.Map{"success": false, "message": perr.Message})
		}
		return deny(c, policy.ActionListTenants, err)
	}

	query := database.GetDB().Model(&model.Tenant{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if plan := c.QueryParam("subscriptionPlan"); plan != "" {
		query = query.Where("subscription_plan = ?", plan)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch tenants"})
	}

	page, limit := pagination(c, 10)
	var tenants []model.Tenant
	if err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&tenants).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch tenants"})
	}

	data := make([]echo.Map, len(tenants))
	for i := range tenants {
		t := &tenants[i]
		var userCount, projectCount int64
		database.GetDB().Model(&model.User{}).Where("tenant_id = ?", t.ID).Count(&userCount)
		database.GetDB().Model(&model.Project{}).Where("tenant_id = ?", t.ID).Count(&projectCount)
		data[i] = echo.Map{
			"id":                t.ID,
			"name":              t.Name,
			"subdomain":         t.Subdomain,
			"status":            t.Status,
			"subscription_plan": t.SubscriptionPlan,
			"created_at":        t.CreatedAt,
			"totalUsers":        userCount,
			"totalProjects":     projectCount,
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"tenants": data,
			"pagination": echo.Map{
				"currentPage":  page,
				"totalPages":   totalPages(total, limit),
				"totalTenants": total,
				"limit":        limit,
			},
		},
	})
}

// GetTenant returns tenant details with usage stats.
func GetTenant(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid tenant ID"})
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, "id = ?", tenantID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Tenant not found"})
	}

	if err := policy.Authorize(actor, policy.ActionViewTenant, policy.Resource{TenantID: tenant.ID}); err != nil {
		var perr *policy.Error
		if errors.As(err, &perr) {
			prometheus.RecordPolicyDenial(string(policy.ActionViewTenant))
			return c.JSON(perr.Status, echo.Map{"success": false, "message": perr.Message})
		}
		return deny(c, policy.ActionViewTenant, err)
	}

	var userCount, projectCount, taskCount int64
	database.GetDB().Model(&model.User{}).Where("tenant_id = ?", tenant.ID).Count(&userCount)
	database.GetDB().Model(&model.Project{}).Where("tenant_id = ?", tenant.ID).Count(&projectCount)
	database.GetDB().Model(&model.Task{}).Where("tenant_id = ?", tenant.ID).Count(&taskCount)

	data := tenantDetail(&tenant)
	data["stats"] = echo.Map{
		"totalUsers":    userCount,
		"totalProjects": projectCount,
		"totalTasks":    taskCount,
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    data,
	})
}

// UpdateTenant updates a tenant. Tenant admins may change only the name; the
// presence of any restricted field in the payload is rejected outright. Super
// admins may change everything, and a plan change recomputes the limits.
func UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	actor := middleware.CurrentUser(c)

	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid tenant ID"})
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, "id = ?", tenantID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Tenant not found"})
	}

	var fields map[string]interface{}
	if err := c.Bind(&fields); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	res := policy.Resource{TenantID: tenant.ID, Tenant: &tenant, UpdateFields: fields}
	if err := policy.Authorize(actor, policy.ActionUpdateTenant, res); err != nil {
		var perr *policy.Error
		if errors.As(err, &perr) {
			prometheus.RecordPolicyDenial(string(policy.ActionUpdateTenant))
			return c.JSON(perr.Status, echo.Map{"success": false, "message": perr.Message})
		}
		return deny(c, policy.ActionUpdateTenant, err)
	}

	if name, ok := fields["name"].(string); ok {
		tenant.Name = name
	}
	if actor.IsSuperAdmin() {
		if status, ok := fields["status"].(string); ok {
			tenant.Status = model.TenantStatus(status)
		}
		if plan, ok := fields["subscription_plan"].(string); ok {
			tenant.SubscriptionPlan = model.SubscriptionPlan(plan)
			tenant.MaxUsers, tenant.MaxProjects = model.PlanLimits(tenant.SubscriptionPlan)
		}
		if maxUsers, ok := fields["max_users"].(float64); ok {
			tenant.MaxUsers = int(maxUsers)
		}
		if maxProjects, ok := fields["max_projects"].(float64); ok {
			tenant.MaxProjects = int(maxProjects)
		}
	}

	if err := database.GetDB().Save(&tenant).Error; err != nil {
		log.Error("Failed to update tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to update tenant"})
	}

	audit.Record(c, actor, audit.UpdateTenant, "tenant", tenant.ID.String(), &tenant.ID)

	log.Info("Tenant updated", zap.String("tenant_id", tenant.ID.String()))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Tenant updated successfully",
		"data":    tenantDetail(&tenant),
	})
}
