package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type (
	HealthHandler struct {
		checkDB           func(ctx context.Context) error
		checkRedis        func(ctx context.Context) error
		activeExperiments func() int
	}
)

func NewHealthHandler(checkDB, checkRedis func(ctx context.Context) error, activeExperiments func() int) *HealthHandler {
	return &HealthHandler{
		checkDB:           checkDB,
		checkRedis:        checkRedis,
		activeExperiments: activeExperiments,
	}
}

// GET /api/v1/recommend/health
// Degraded dependencies are reported, not fatal: serving can still
// answer from caches with redis or the database down.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := "ok"

	dbStatus := "ok"
	if err := h.checkDB(ctx); err != nil {
		dbStatus = err.Error()
		status = "degraded"
	}

	redisStatus := "ok"
	if err := h.checkRedis(ctx); err != nil {
		redisStatus = err.Error()
		status = "degraded"
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{
		"status":             status,
		"database":           dbStatus,
		"redis":              redisStatus,
		"active_experiments": h.activeExperiments(),
	}))
}
