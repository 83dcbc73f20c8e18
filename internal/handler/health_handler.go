package handler

import (
	"net/http"
	"taskhub/pkg/database"
	"taskhub/prometheus"

	"github.com/labstack/echo/v4"
)

// HealthCheck reports service and database health.
func HealthCheck(c echo.Context) error {
	if err := database.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "error",
			"database": "disconnected",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "ok",
		"database": "connected",
	})
}

// MetricsHandler exposes Prometheus metrics.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// APIRoot is a small index of the API surface.
func APIRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"service": "taskhub",
		"endpoints": echo.Map{
			"auth":      "/api/auth",
			"tenants":   "/api/tenants",
			"projects":  "/api/projects",
			"tasks":     "/api/tasks",
			"auditLogs": "/api/audit-logs",
			"health":    "/api/health",
			"metrics":   "/metrics",
		},
	})
}
