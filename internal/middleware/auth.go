package middleware

import (
	"net/http"
	"strings"
	"taskhub/internal/model"
	"taskhub/pkg/database"
	"taskhub/pkg/jwtutil"
	"taskhub/pkg/logger"
	"taskhub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const userContextKey = "user"

// AuthMiddleware validates the bearer token and resolves it to a live user.
// The user is reloaded from the store on every request so role and active
// flag changes take effect immediately.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid authorization header"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Debug("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid or expired token"})
		}

		var user model.User
		if err := database.GetDB().Preload("Tenant").First(&user, "id = ?", claims.UserID).Error; err != nil {
			prometheus.RecordAuthError("user_not_found")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid or expired token"})
		}
		if !user.IsActive {
			prometheus.RecordAuthError("user_inactive")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid or expired token"})
		}

		c.Set(userContextKey, &user)
		return next(c)
	}
}

// CurrentUser returns the authenticated user set by AuthMiddleware.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}
