package handler

import (
	"errors"
	"net/http"
	"taskhub/internal/audit"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/pkg/database"
	"taskhub/pkg/jwtutil"
	"taskhub/pkg/logger"
	"taskhub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterTenant creates a tenant and its first tenant admin atomically.
// A duplicate subdomain rolls the whole registration back.
func RegisterTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		TenantName    string `json:"tenantName"`
		Subdomain     string `json:"subdomain"`
		AdminEmail    string `json:"adminEmail"`
		AdminPassword string `json:"adminPassword"`
		AdminFullName string `json:"adminFullName"`
	}

	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.TenantName == "" || req.Subdomain == "" || req.AdminEmail == "" || req.AdminFullName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "All fields are required"})
	}
	if len(req.AdminPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Password must be at least 8 characters"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Registration failed"})
	}

	tenant := model.Tenant{
		Name:             req.TenantName,
		Subdomain:        req.Subdomain,
		Status:           model.TenantStatusActive,
		SubscriptionPlan: model.PlanFree,
		MaxUsers:         5,
		MaxProjects:      3,
	}
	admin := model.User{
		Email:        req.AdminEmail,
		PasswordHash: string(hashedPassword),
		FullName:     req.AdminFullName,
		Role:         model.RoleTenantAdmin,
		IsActive:     true,
	}

	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		admin.TenantID = &tenant.ID
		return tx.Create(&admin).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "Subdomain already exists"})
		}
		log.Error("Failed to register tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Registration failed"})
	}

	audit.Record(c, &admin, audit.CreateTenant, "tenant", tenant.ID.String(), &tenant.ID)

	log.Info("Tenant registered",
		zap.String("subdomain", tenant.Subdomain),
		zap.String("tenant_id", tenant.ID.String()))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Tenant registered successfully",
		"data": echo.Map{
			"tenantId":  tenant.ID,
			"subdomain": tenant.Subdomain,
			"adminUser": echo.Map{
				"id":    admin.ID,
				"email": admin.Email,
				"role":  admin.Role,
			},
		},
	})
}

// Login resolves credentials within a tenant subdomain namespace. The
// subdomains "" and "system" first try the cross-tenant super admin branch.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		TenantSubdomain string `json:"tenantSubdomain"`
	}

	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email and password are required"})
	}

	if req.TenantSubdomain == "system" || req.TenantSubdomain == "" {
		var superAdmin model.User
		err := database.GetDB().
			Where("email = ? AND role = ? AND is_active = ?", req.Email, model.RoleSuperAdmin, true).
			First(&superAdmin).Error
		if err == nil && bcrypt.CompareHashAndPassword([]byte(superAdmin.PasswordHash), []byte(req.Password)) == nil {
			return loginResponse(c, &superAdmin)
		}
		// "system" is reserved for super admins; an empty subdomain falls
		// through to the tenant lookup below.
		if req.TenantSubdomain == "system" {
			prometheus.RecordAuthError("invalid_credentials")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
		}
	}

	var tenant model.Tenant
	if err := database.GetDB().Where("subdomain = ?", req.TenantSubdomain).First(&tenant).Error; err != nil {
		prometheus.RecordAuthError("tenant_not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Tenant not found"})
	}

	var user model.User
	err := database.GetDB().
		Where("email = ? AND tenant_id = ? AND is_active = ?", req.Email, tenant.ID, true).
		First(&user).Error
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		log.Debug("Login failed", zap.String("email", req.Email), zap.String("subdomain", req.TenantSubdomain))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}

	return loginResponse(c, &user)
}

func loginResponse(c echo.Context, user *model.User) error {
	token, err := jwtutil.GenerateToken(user)
	if err != nil {
		logger.FromContext(c).Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Token error"})
	}

	audit.Record(c, user, audit.UserLogin, "user", user.ID.String(), nil)

	var tenantID interface{}
	if user.TenantID != nil {
		tenantID = user.TenantID.String()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":        user.ID,
			"email":     user.Email,
			"fullName":  user.FullName,
			"role":      user.Role,
			"tenantId":  tenantID,
			"token":     token,
			"expiresIn": jwtutil.ExpiresIn(),
		},
	})
}

// Logout is audit only. The bearer token stays valid until it expires; the
// client is responsible for discarding it.
func Logout(c echo.Context) error {
	user := middleware.CurrentUser(c)
	audit.Record(c, user, audit.UserLogout, "user", user.ID.String(), nil)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated user's profile.
func Me(c echo.Context) error {
	user := middleware.CurrentUser(c)

	var tenantID interface{}
	if user.TenantID != nil {
		tenantID = user.TenantID.String()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":       user.ID,
			"email":    user.Email,
			"fullName": user.FullName,
			"role":     user.Role,
			"tenantId": tenantID,
		},
	})
}
