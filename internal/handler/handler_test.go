package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/pkg/config"
	"taskhub/pkg/database"
	"taskhub/pkg/jwtutil"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTest wires an in-memory database and the full route table. Each test
// gets its own database.
func setupTest(t *testing.T) *echo.Echo {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 24})

	e := echo.New()
	e.GET("/", APIRoot)
	e.GET("/api/health", HealthCheck)

	api := e.Group("/api")
	api.POST("/auth/register-tenant", RegisterTenant)
	api.POST("/auth/login", Login)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware)
	authed.POST("/auth/logout", Logout)
	authed.GET("/auth/me", Me)
	authed.GET("/tenants/", ListTenants)
	authed.GET("/tenants/:id", GetTenant)
	authed.PUT("/tenants/:id", UpdateTenant)
	authed.GET("/tenants/:id/users", ListTenantUsers)
	authed.POST("/tenants/:id/users", CreateTenantUser)
	authed.PUT("/users/:id", UpdateUser)
	authed.DELETE("/users/:id", DeleteUser)
	authed.GET("/projects", ListProjects)
	authed.POST("/projects", CreateProject)
	authed.GET("/projects/:id", GetProject)
	authed.PUT("/projects/:id", UpdateProject)
	authed.DELETE("/projects/:id", DeleteProject)
	authed.GET("/projects/:id/tasks", ListProjectTasks)
	authed.POST("/projects/:id/tasks", CreateTask)
	authed.GET("/tasks", MyTasks)
	authed.PATCH("/tasks/:id/status", UpdateTaskStatus)
	authed.PUT("/tasks/:id", UpdateTask)
	authed.DELETE("/tasks/:id", DeleteTask)
	authed.GET("/audit-logs/", ListAuditLogs)
	authed.GET("/audit-logs/:id", GetAuditLog)

	return e
}

func doRequest(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// registerTenant creates a tenant through the API and returns its id and the
// admin's bearer token.
func registerTenant(t *testing.T, e *echo.Echo, name, subdomain string) (string, string) {
	t.Helper()

	rec, body := doRequest(t, e, http.MethodPost, "/api/auth/register-tenant", "", echo.Map{
		"tenantName":    name,
		"subdomain":     subdomain,
		"adminEmail":    "admin@" + subdomain + ".test",
		"adminPassword": "password123",
		"adminFullName": subdomain + " Admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := body["data"].(map[string]interface{})
	tenantID := data["tenantId"].(string)

	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "admin@" + subdomain + ".test",
		"password":        "password123",
		"tenantSubdomain": subdomain,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token := body["data"].(map[string]interface{})["token"].(string)
	return tenantID, token
}

// createUser adds a member through the API and returns its id and token.
func createUser(t *testing.T, e *echo.Echo, adminToken, tenantID, email, role string) (string, string) {
	t.Helper()

	rec, body := doRequest(t, e, http.MethodPost, "/api/tenants/"+tenantID+"/users", adminToken, echo.Map{
		"email":     email,
		"password":  "password123",
		"full_name": "Member " + email,
		"role":      role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := body["data"].(map[string]interface{})["id"].(string)

	var user model.User
	require.NoError(t, database.GetDB().First(&user, "id = ?", userID).Error)
	token, err := jwtutil.GenerateToken(&user)
	require.NoError(t, err)
	return userID, token
}

func createProject(t *testing.T, e *echo.Echo, token, name string) string {
	t.Helper()

	rec, body := doRequest(t, e, http.MethodPost, "/api/projects", token, echo.Map{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["data"].(map[string]interface{})["id"].(string)
}

func TestRegisterTenantAndLogin(t *testing.T) {
	e := setupTest(t)

	rec, body := doRequest(t, e, http.MethodPost, "/api/auth/register-tenant", "", echo.Map{
		"tenantName":    "Acme",
		"subdomain":     "acme",
		"adminEmail":    "admin@acme.test",
		"adminPassword": "password123",
		"adminFullName": "Acme Admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "acme", data["subdomain"])
	adminUser := data["adminUser"].(map[string]interface{})
	assert.Equal(t, "tenant_admin", adminUser["role"])

	// Same subdomain again is a conflict, and no partial state survives.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/register-tenant", "", echo.Map{
		"tenantName":    "Acme Again",
		"subdomain":     "acme",
		"adminEmail":    "other@acme.test",
		"adminPassword": "password123",
		"adminFullName": "Other Admin",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Subdomain already exists", body["message"])

	var users int64
	require.NoError(t, database.GetDB().Model(&model.User{}).Where("email = ?", "other@acme.test").Count(&users).Error)
	assert.EqualValues(t, 0, users)

	// Login against the right tenant.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "admin@acme.test",
		"password":        "password123",
		"tenantSubdomain": "acme",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	loginData := body["data"].(map[string]interface{})
	assert.NotEmpty(t, loginData["token"])
	assert.EqualValues(t, 86400, loginData["expiresIn"])

	// Wrong password.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "admin@acme.test",
		"password":        "wrong-password",
		"tenantSubdomain": "acme",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", body["message"])

	// Unknown subdomain is a 404, not a 401.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "admin@acme.test",
		"password":        "password123",
		"tenantSubdomain": "nothere",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Tenant not found", body["message"])
}

func TestWeakPasswordRejected(t *testing.T) {
	e := setupTest(t)

	rec, body := doRequest(t, e, http.MethodPost, "/api/auth/register-tenant", "", echo.Map{
		"tenantName":    "Acme",
		"subdomain":     "acme",
		"adminEmail":    "admin@acme.test",
		"adminPassword": "short",
		"adminFullName": "Acme Admin",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be at least 8 characters", body["message"])
}

func TestAuthRequired(t *testing.T) {
	e := setupTest(t)

	rec, body := doRequest(t, e, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", body["message"])

	rec, body = doRequest(t, e, http.MethodGet, "/api/auth/me", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestUserQuotaEnforced(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")

	// Free plan allows 5 users and the admin is the first.
	for i := 0; i < 4; i++ {
		createUser(t, e, adminToken, tenantID, fmt.Sprintf("user%d@acme.test", i), "user")
	}

	rec, body := doRequest(t, e, http.MethodPost, "/api/tenants/"+tenantID+"/users", adminToken, echo.Map{
		"email":     "overflow@acme.test",
		"password":  "password123",
		"full_name": "One Too Many",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User limit reached", body["message"])
}

func TestCreateUserRules(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")
	_, memberToken := createUser(t, e, adminToken, tenantID, "member@acme.test", "user")

	// Members cannot create users.
	rec, body := doRequest(t, e, http.MethodPost, "/api/tenants/"+tenantID+"/users", memberToken, echo.Map{
		"email":     "sneaky@acme.test",
		"password":  "password123",
		"full_name": "Sneaky",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized", body["message"])

	// Nobody mints super admins through this endpoint.
	rec, body = doRequest(t, e, http.MethodPost, "/api/tenants/"+tenantID+"/users", adminToken, echo.Map{
		"email":     "root@acme.test",
		"password":  "password123",
		"full_name": "Root",
		"role":      "super_admin",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Duplicate email within the tenant is a conflict.
	rec, body = doRequest(t, e, http.MethodPost, "/api/tenants/"+tenantID+"/users", adminToken, echo.Map{
		"email":     "member@acme.test",
		"password":  "password123",
		"full_name": "Duplicate",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCrossTenantUserAccess(t *testing.T) {
	e := setupTest(t)
	acmeID, acmeAdmin := registerTenant(t, e, "Acme", "acme")
	_, globexAdmin := registerTenant(t, e, "Globex", "globex")

	// Listing another tenant's users is blocked before existence is revealed.
	rec, body := doRequest(t, e, http.MethodGet, "/api/tenants/"+acmeID+"/users", globexAdmin, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", body["message"])

	// Editing a user from another tenant reads as isolation.
	memberID, _ := createUser(t, e, acmeAdmin, acmeID, "member@acme.test", "user")
	rec, body = doRequest(t, e, http.MethodPut, "/api/users/"+memberID, globexAdmin, echo.Map{
		"full_name": "Hijacked",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", body["message"])
}

func TestDeleteUserDetachesWork(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")
	memberID, memberToken := createUser(t, e, adminToken, tenantID, "member@acme.test", "user")

	projectID := createProject(t, e, memberToken, "Launch")
	rec, body := doRequest(t, e, http.MethodPost, "/api/projects/"+projectID+"/tasks", adminToken, echo.Map{
		"title":       "Prepare",
		"assigned_to": memberID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskID := body["data"].(map[string]interface{})["id"].(string)

	rec, _ = doRequest(t, e, http.MethodDelete, "/api/users/"+memberID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The task and project survive with the references cleared.
	var task model.Task
	require.NoError(t, database.GetDB().First(&task, "id = ?", taskID).Error)
	assert.Nil(t, task.AssignedToID)

	var project model.Project
	require.NoError(t, database.GetDB().First(&project, "id = ?", projectID).Error)
	assert.Nil(t, project.CreatedByID)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	e := setupTest(t)
	_, adminToken := registerTenant(t, e, "Acme", "acme")

	rec, body := doRequest(t, e, http.MethodGet, "/api/auth/me", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	adminID := body["data"].(map[string]interface{})["id"].(string)

	rec, body = doRequest(t, e, http.MethodDelete, "/api/users/"+adminID, adminToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Tenant admin cannot delete themselves", body["message"])
}

func TestProjectQuotaEnforced(t *testing.T) {
	e := setupTest(t)
	_, adminToken := registerTenant(t, e, "Acme", "acme")

	for i := 0; i < 3; i++ {
		createProject(t, e, adminToken, fmt.Sprintf("Project %d", i))
	}

	rec, body := doRequest(t, e, http.MethodPost, "/api/projects", adminToken, echo.Map{"name": "Overflow"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Project limit reached", body["message"])
}

func TestProjectIsolation(t *testing.T) {
	e := setupTest(t)
	_, acmeAdmin := registerTenant(t, e, "Acme", "acme")
	_, globexAdmin := registerTenant(t, e, "Globex", "globex")

	projectID := createProject(t, e, acmeAdmin, "Secret")

	rec, body := doRequest(t, e, http.MethodGet, "/api/projects/"+projectID, globexAdmin, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", body["message"])

	// The other tenant's listing does not include it either.
	rec, body = doRequest(t, e, http.MethodGet, "/api/projects", globexAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	projects := body["data"].(map[string]interface{})["projects"].([]interface{})
	assert.Len(t, projects, 0)
}

func TestTenantUpdateRestrictedField(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")

	// Name changes are fine for the tenant admin.
	rec, _ := doRequest(t, e, http.MethodPut, "/api/tenants/"+tenantID, adminToken, echo.Map{
		"name": "Acme Corp",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Plan changes are not, even to the current value.
	rec, body := doRequest(t, e, http.MethodPut, "/api/tenants/"+tenantID, adminToken, echo.Map{
		"subscription_plan": "free",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You are not authorized to update subscription_plan", body["message"])
}

func TestSuperAdminPlanChangeAppliesLimits(t *testing.T) {
	e := setupTest(t)
	tenantID, _ := registerTenant(t, e, "Acme", "acme")
	superToken := createSuperAdmin(t)

	rec, _ := doRequest(t, e, http.MethodPut, "/api/tenants/"+tenantID, superToken, echo.Map{
		"subscription_plan": "pro",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tenant model.Tenant
	require.NoError(t, database.GetDB().First(&tenant, "id = ?", tenantID).Error)
	assert.Equal(t, model.PlanPro, tenant.SubscriptionPlan)
	assert.Equal(t, 20, tenant.MaxUsers)
	assert.Equal(t, 20, tenant.MaxProjects)
}

func createSuperAdmin(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("rootpass123"), bcrypt.MinCost)
	require.NoError(t, err)

	super := model.User{
		Email:        "root@system.test",
		PasswordHash: string(hash),
		FullName:     "Root",
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	require.NoError(t, database.GetDB().Create(&super).Error)
	token, err := jwtutil.GenerateToken(&super)
	require.NoError(t, err)
	return token
}

func TestSuperAdminLoginBranches(t *testing.T) {
	e := setupTest(t)
	registerTenant(t, e, "Acme", "acme")
	createSuperAdmin(t)

	// "system" routes to the super admin account.
	rec, body := doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "root@system.test",
		"password":        "rootpass123",
		"tenantSubdomain": "system",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "super_admin", data["role"])
	assert.Nil(t, data["tenantId"])
	assert.NotEmpty(t, data["token"])

	// An empty subdomain reaches the super admin branch first too.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "root@system.test",
		"password":        "rootpass123",
		"tenantSubdomain": "",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "super_admin", body["data"].(map[string]interface{})["role"])

	// "system" never falls through to the tenant lookup.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "root@system.test",
		"password":        "wrong-password",
		"tenantSubdomain": "system",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", body["message"])

	// An empty subdomain with no super admin match falls through to the
	// tenant lookup, and no tenant has an empty subdomain.
	rec, body = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":           "admin@acme.test",
		"password":        "password123",
		"tenantSubdomain": "",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Tenant not found", body["message"])
}

func TestMissingTargetsReturnNotFound(t *testing.T) {
	e := setupTest(t)
	_, adminToken := registerTenant(t, e, "Acme", "acme")
	missing := uuid.NewString()

	rec, body := doRequest(t, e, http.MethodGet, "/api/projects/"+missing, adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Project not found", body["message"])

	rec, body = doRequest(t, e, http.MethodPatch, "/api/tasks/"+missing+"/status", adminToken, echo.Map{
		"status": "todo",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", body["message"])

	rec, body = doRequest(t, e, http.MethodPut, "/api/users/"+missing, adminToken, echo.Map{
		"full_name": "Nobody",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", body["message"])

	rec, body = doRequest(t, e, http.MethodGet, "/api/projects/not-a-uuid", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid project ID", body["message"])
}

func TestTenantListSuperAdminOnly(t *testing.T) {
	e := setupTest(t)
	_, adminToken := registerTenant(t, e, "Acme", "acme")
	registerTenant(t, e, "Globex", "globex")
	superToken := createSuperAdmin(t)

	rec, body := doRequest(t, e, http.MethodGet, "/api/tenants/", adminToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Access denied. Super admin only.", body["message"])

	rec, body = doRequest(t, e, http.MethodGet, "/api/tenants/", superToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tenants := body["data"].(map[string]interface{})["tenants"].([]interface{})
	assert.Len(t, tenants, 2)
}

func TestSuperAdminCannotCreateProjects(t *testing.T) {
	e := setupTest(t)
	registerTenant(t, e, "Acme", "acme")
	superToken := createSuperAdmin(t)

	rec, body := doRequest(t, e, http.MethodPost, "/api/projects", superToken, echo.Map{"name": "Global"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Super admin cannot create projects", body["message"])
}

func TestTaskWorkflow(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")
	assigneeID, assigneeToken := createUser(t, e, adminToken, tenantID, "dev@acme.test", "user")
	_, bystanderToken := createUser(t, e, adminToken, tenantID, "other@acme.test", "user")

	projectID := createProject(t, e, adminToken, "Launch")

	rec, body := doRequest(t, e, http.MethodPost, "/api/projects/"+projectID+"/tasks", adminToken, echo.Map{
		"title":       "Write docs",
		"priority":    "high",
		"assigned_to": assigneeID,
		"due_date":    "2026-10-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskData := body["data"].(map[string]interface{})
	taskID := taskData["id"].(string)
	assert.Equal(t, "todo", taskData["status"])
	assert.Equal(t, "high", taskData["priority"])

	// The assignee can move it through the workflow.
	rec, body = doRequest(t, e, http.MethodPatch, "/api/tasks/"+taskID+"/status", assigneeToken, echo.Map{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_progress", body["data"].(map[string]interface{})["status"])

	// A bystander in the same tenant cannot.
	rec, body = doRequest(t, e, http.MethodPatch, "/api/tasks/"+taskID+"/status", bystanderToken, echo.Map{
		"status": "completed",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only the assigned user or admin can update this task", body["message"])

	// Unknown workflow states are rejected.
	rec, body = doRequest(t, e, http.MethodPatch, "/api/tasks/"+taskID+"/status", assigneeToken, echo.Map{
		"status": "done",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status", body["message"])

	// Editing details is admin territory, assignee or not.
	rec, body = doRequest(t, e, http.MethodPut, "/api/tasks/"+taskID, assigneeToken, echo.Map{
		"title": "Renamed",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only admin can edit task details", body["message"])

	rec, _ = doRequest(t, e, http.MethodPut, "/api/tasks/"+taskID, adminToken, echo.Map{
		"title":    "Write better docs",
		"priority": "medium",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Deleting is admin only too.
	rec, body = doRequest(t, e, http.MethodDelete, "/api/tasks/"+taskID, assigneeToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only admin can delete tasks", body["message"])

	rec, _ = doRequest(t, e, http.MethodDelete, "/api/tasks/"+taskID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskAssignmentStaysInTenant(t *testing.T) {
	e := setupTest(t)
	_, acmeAdmin := registerTenant(t, e, "Acme", "acme")
	globexID, globexAdmin := registerTenant(t, e, "Globex", "globex")
	outsiderID, _ := createUser(t, e, globexAdmin, globexID, "dev@globex.test", "user")

	projectID := createProject(t, e, acmeAdmin, "Launch")

	rec, body := doRequest(t, e, http.MethodPost, "/api/projects/"+projectID+"/tasks", acmeAdmin, echo.Map{
		"title":       "Leaky task",
		"assigned_to": outsiderID,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Assigned user must belong to same tenant", body["message"])
}

func TestMyTasks(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")
	assigneeID, assigneeToken := createUser(t, e, adminToken, tenantID, "dev@acme.test", "user")

	projectID := createProject(t, e, adminToken, "Launch")

	for _, title := range []string{"One", "Two"} {
		rec, _ := doRequest(t, e, http.MethodPost, "/api/projects/"+projectID+"/tasks", adminToken, echo.Map{
			"title":       title,
			"assigned_to": assigneeID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ := doRequest(t, e, http.MethodPost, "/api/projects/"+projectID+"/tasks", adminToken, echo.Map{
		"title": "Unassigned",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doRequest(t, e, http.MethodGet, "/api/tasks", assigneeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := body["data"].([]interface{})
	assert.Len(t, tasks, 2)
}

func TestAuditTrail(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")
	_, memberToken := createUser(t, e, adminToken, tenantID, "member@acme.test", "user")
	createProject(t, e, adminToken, "Launch")

	rec, body := doRequest(t, e, http.MethodGet, "/api/audit-logs/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	logs := data["logs"].([]interface{})
	require.NotEmpty(t, logs)

	actions := map[string]bool{}
	for _, raw := range logs {
		entry := raw.(map[string]interface{})
		actions[entry["action"].(string)] = true
	}
	assert.True(t, actions["CREATE_TENANT"])
	assert.True(t, actions["CREATE_USER"])
	assert.True(t, actions["CREATE_PROJECT"])

	// Members see their tenant's trail too, filters narrow it.
	rec, body = doRequest(t, e, http.MethodGet, "/api/audit-logs/?action=CREATE_PROJECT", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs = body["data"].(map[string]interface{})["logs"].([]interface{})
	require.Len(t, logs, 1)

	entryID := logs[0].(map[string]interface{})["id"].(string)
	rec, body = doRequest(t, e, http.MethodGet, "/api/audit-logs/"+entryID, memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Another tenant cannot read it.
	_, globexAdmin := registerTenant(t, e, "Globex", "globex")
	rec, body = doRequest(t, e, http.MethodGet, "/api/audit-logs/"+entryID, globexAdmin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Audit log not found", body["message"])
}

func TestDeactivatedUserLockedOut(t *testing.T) {
	e := setupTest(t)
	tenantID, adminToken := registerTenant(t, e, "Acme", "acme")
	memberID, memberToken := createUser(t, e, adminToken, tenantID, "member@acme.test", "user")

	rec, _ := doRequest(t, e, http.MethodPut, "/api/users/"+memberID, adminToken, echo.Map{
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The still-valid token no longer works.
	rec, body := doRequest(t, e, http.MethodGet, "/api/auth/me", memberToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestHealthCheck(t *testing.T) {
	e := setupTest(t)

	rec, body := doRequest(t, e, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["database"])
}
