package main

import (
	"taskhub/internal/handler"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/pkg/config"
	"taskhub/pkg/database"
	"taskhub/pkg/jwtutil"
	"taskhub/pkg/logger"
	"taskhub/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting taskhub service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Seed the platform operator account if configured
	if err := bootstrapSuperAdmin(cfg, log); err != nil {
		log.Fatal("Failed to bootstrap super admin", zap.Error(err))
	}

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", handler.APIRoot)
	e.GET("/api/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	api := e.Group("/api")

	// Authentication routes
	auth := api.Group("/auth")
	auth.POST("/register-tenant", handler.RegisterTenant)
	auth.POST("/login", handler.Login)

	// Everything below requires a valid token
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware)

	authed.POST("/auth/logout", handler.Logout)
	authed.GET("/auth/me", handler.Me)

	// Tenant management
	tenants := authed.Group("/tenants")
	tenants.GET("/", handler.ListTenants)
	tenants.GET("/:id", handler.GetTenant)
	tenants.PUT("/:id", handler.UpdateTenant)
	tenants.GET("/:id/users", handler.ListTenantUsers)
	tenants.POST("/:id/users", handler.CreateTenantUser)

	// User management
	users := authed.Group("/users")
	users.PUT("/:id", handler.UpdateUser)
	users.DELETE("/:id", handler.DeleteUser)

	// Projects and their tasks
	projects := authed.Group("/projects")
	projects.GET("", handler.ListProjects)
	projects.POST("", handler.CreateProject)
	projects.GET("/:id", handler.GetProject)
	projects.PUT("/:id", handler.UpdateProject)
	projects.DELETE("/:id", handler.DeleteProject)
	projects.GET("/:id/tasks", handler.ListProjectTasks)
	projects.POST("/:id/tasks", handler.CreateTask)

	// Tasks
	tasks := authed.Group("/tasks")
	tasks.GET("", handler.MyTasks)
	tasks.PATCH("/:id/status", handler.UpdateTaskStatus)
	tasks.PUT("/:id", handler.UpdateTask)
	tasks.DELETE("/:id", handler.DeleteTask)

	// Audit trail
	auditLogs := authed.Group("/audit-logs")
	auditLogs.GET("/", handler.ListAuditLogs)
	auditLogs.GET("/:id", handler.GetAuditLog)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// bootstrapSuperAdmin ensures the configured platform operator exists. It is
// idempotent: an existing account with the same email is left untouched.
func bootstrapSuperAdmin(cfg *config.Config, log *zap.Logger) error {
	if cfg.Bootstrap.SuperAdminEmail == "" || cfg.Bootstrap.SuperAdminPassword == "" {
		return nil
	}

	db := database.GetDB()

	var count int64
	if err := db.Model(&model.User{}).
		Where("email = ? AND tenant_id IS NULL", cfg.Bootstrap.SuperAdminEmail).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Bootstrap.SuperAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        cfg.Bootstrap.SuperAdminEmail,
		PasswordHash: string(hash),
		FullName:     cfg.Bootstrap.SuperAdminName,
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
		IsStaff:      true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Info("Super admin account created", zap.String("email", admin.Email))
	return nil
}
