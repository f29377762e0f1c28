package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	database := "ok"
	healthy := true
	if err := s.dbHealth.Ping(ctx); err != nil {
		database = err.Error()
		healthy = false
	}

	body := map[string]any{
		"status":   "healthy",
		"database": database,
	}
	if !healthy {
		body["status"] = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, envelope{Status: "error", Data: body})
	}
	return respondSuccess(c, http.StatusOK, body)
}
