package handler

import (
	"errors"
	"net/http"
	"strconv"
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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func userListItem(u *model.User) echo.Map {
	return echo.Map{
		"id":         u.ID,
		"email":      u.Email,
		"full_name":  u.FullName,
		"role":       u.Role,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
}

// ListTenantUsers lists the users of a tenant, filterable by search and role.
func ListTenantUsers(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid tenant ID"})
	}

	// Isolation is checked before the tenant lookup, so a wrong-tenant caller
	// cannot probe which tenant ids exist.
	if err := policy.Authorize(actor, policy.ActionListTenantUsers, policy.Resource{TenantID: tenantID}); err != nil {
		return deny(c, policy.ActionListTenantUsers, err)
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, "id = ?", tenantID).Error; err != nil {
		return deny(c, policy.ActionListTenantUsers, policy.NotFound("Tenant not found"))
	}

	query := database.GetDB().Model(&model.User{}).Where("tenant_id = ?", tenant.ID)

	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE LOWER(?) OR LOWER(full_name) LIKE LOWER(?)", pattern, pattern)
	}
	if role := c.QueryParam("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch users"})
	}

	page, limit := pagination(c, 50)
	var users []model.User
	if err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch users"})
	}

	data := make([]echo.Map, len(users))
	for i := range users {
		data[i] = userListItem(&users[i])
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    data,
		"total":   total,
		"pagination": echo.Map{
			"currentPage": page,
			"totalPages":  totalPages(total, limit),
			"limit":       limit,
		},
	})
}

// CreateTenantUser adds a user to a tenant, subject to the user quota and
// email uniqueness within the tenant.
func CreateTenantUser(c echo.Context) error {
	log := logger.FromContext(c)
	actor := middleware.CurrentUser(c)

	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid tenant ID"})
	}

	if err := policy.Authorize(actor, policy.ActionCreateUser, policy.Resource{TenantID: tenantID}); err != nil {
		return deny(c, policy.ActionCreateUser, err)
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, "id = ?", tenantID).Error; err != nil {
		return deny(c, policy.ActionCreateUser, policy.NotFound("Tenant not found"))
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}
	if req.Email == "" || req.FullName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email and full_name are required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Password must be at least 8 characters"})
	}
	role := model.Role(req.Role)
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() || role == model.RoleSuperAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid role"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to create user"})
	}

	newUser := model.User{
		TenantID:     &tenant.ID,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Role:         role,
		IsActive:     true,
	}

	// Quota check and insert share one transaction; the unique index on
	// (tenant_id, email) backstops concurrent creates.
	txErr := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := quota.CheckUsers(tx, &tenant); err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&model.User{}).
			Where("tenant_id = ? AND email = ?", tenant.ID, req.Email).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return &policy.Error{Status: http.StatusConflict, Message: "Email already exists in this tenant"}
		}
		return tx.Create(&newUser).Error
	})
	if txErr != nil {
		var perr *policy.Error
		if errors.As(txErr, &perr) {
			if perr.Message == "User limit reached" {
				prometheus.RecordQuotaRejection("user")
			}
			return c.JSON(perr.Status, echo.Map{"message": perr.Message})
		}
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "Email already exists in this tenant"})
		}
		log.Error("Failed to create user", zap.Error(txErr))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to create user"})
	}

	audit.Record(c, actor, audit.CreateUser, "user", newUser.ID.String(), &tenant.ID)

	log.Info("User created",
		zap.String("email", newUser.Email),
		zap.String("tenant_id", tenant.ID.String()))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "User created successfully",
		"data":    userListItem(&newUser),
	})
}

// UpdateUser updates a user's profile. Admin-only fields (role, is_active)
// are applied only when the actor is a tenant admin of the same tenant.
func UpdateUser(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid user ID"})
	}

	var target model.User
	if err := database.GetDB().First(&target, "id = ?", userID).Error; err != nil {
		return deny(c, policy.ActionUpdateUser, policy.NotFound("User not found"))
	}

	if err := policy.Authorize(actor, policy.ActionUpdateUser, policy.Resource{User: &target}); err != nil {
		return deny(c, policy.ActionUpdateUser, err)
	}

	var req struct {
		FullName *string `json:"full_name"`
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.FullName != nil {
		target.FullName = *req.FullName
	}
	if actor.IsTenantAdmin() {
		if req.Role != nil {
			role := model.Role(*req.Role)
			if !role.Valid() || role == model.RoleSuperAdmin {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid role"})
			}
			target.Role = role
		}
		if req.IsActive != nil {
			target.IsActive = *req.IsActive
		}
	}

	if err := database.GetDB().Save(&target).Error; err != nil {
		logger.FromContext(c).Error("Failed to update user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to update user"})
	}

	audit.Record(c, actor, audit.UpdateUser, "user", target.ID.String(), target.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User updated successfully",
		"data": echo.Map{
			"id":        target.ID,
			"full_name": target.FullName,
			"role":      target.Role,
			"is_active": target.IsActive,
		},
	})
}

// DeleteUser removes a user. Tenant admins cannot delete themselves.
func DeleteUser(c echo.Context) error {
	actor := middleware.CurrentUser(c)

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid user ID"})
	}

	var target model.User
	if err := database.GetDB().First(&target, "id = ?", userID).Error; err != nil {
		return deny(c, policy.ActionDeleteUser, policy.NotFound("User not found"))
	}

	if err := policy.Authorize(actor, policy.ActionDeleteUser, policy.Resource{User: &target}); err != nil {
		return deny(c, policy.ActionDeleteUser, err)
	}

	// Non-owning references survive the delete as nulls.
	txErr := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).Where("assigned_to_id = ?", target.ID).
			Update("assigned_to_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Project{}).Where("created_by_id = ?", target.ID).
			Update("created_by_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.AuditLog{}).Where("user_id = ?", target.ID).
			Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&target).Error
	})
	if txErr != nil {
		logger.FromContext(c).Error("Failed to delete user", zap.Error(txErr))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to delete user"})
	}

	audit.Record(c, actor, audit.DeleteUser, "user", target.ID.String(), target.TenantID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User deleted successfully",
	})
}

// pagination parses page/limit query params with a capped limit.
func pagination(c echo.Context, defaultLimit int) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func totalPages(total int64, limit int) int64 {
	if total == 0 {
		return 1
	}
	return (total + int64(limit) - 1) / int64(limit)
}
