package handler

import (
	"errors"
	"net/http"
	"taskhub/internal/policy"
	"taskhub/prometheus"

	"github.com/labstack/echo/v4"
)

// deny translates a policy or quota error into its HTTP response. Anything
// that is not a policy decision is reported as a generic server error.
func deny(c echo.Context, action policy.Action, err error) error {
	var perr *policy.Error
	if errors.As(err, &perr) {
		if perr.Status == http.StatusForbidden {
			prometheus.RecordPolicyDenial(string(action))
		}
		return c.JSON(perr.Status, echo.Map{"message": perr.Message})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
}
