package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"campusCanteen/domain"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

type (
	ExperimentAdminHandler struct {
		validate          *validator.Validate
		experimentService ExperimentService
	}

	ExperimentService interface {
		Create(ctx context.Context, exp *domain.Experiment) error
		Update(ctx context.Context, exp *domain.Experiment) error
		Delete(ctx context.Context, id string) error
		SetStatus(ctx context.Context, id, status string) error
		Get(ctx context.Context, id string) (*domain.Experiment, error)
		List(ctx context.Context) ([]domain.Experiment, error)
		ResolveGroup(ctx context.Context, userID uint, experimentID string) (domain.ExperimentGroup, bool)
	}

	ExperimentGroupRequest struct {
		Name   string                 `json:"name" validate:"required"`
		Ratio  float64                `json:"ratio"`
		Config map[string]interface{} `json:"config"`
	}

	ExperimentRequest struct {
		Name         string                   `json:"name" validate:"required"`
		Description  string                   `json:"description"`
		Scene        string                   `json:"scene" validate:"omitempty,oneof=home search similar personal guess_like today"`
		TrafficRatio float64                  `json:"traffic_ratio"`
		StartTime    time.Time                `json:"start_time"`
		EndTime      *time.Time               `json:"end_time"`
		Groups       []ExperimentGroupRequest `json:"groups"`
	}
)

func NewExperimentAdminHandler(svc ExperimentService) *ExperimentAdminHandler {
	return &ExperimentAdminHandler{
		validate:          validator.New(),
		experimentService: svc,
	}
}

func (r ExperimentRequest) toDomain() domain.Experiment {
	exp := domain.Experiment{
		Name:         r.Name,
		Description:  r.Description,
		Scene:        r.Scene,
		TrafficRatio: r.TrafficRatio,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
	}
	for _, g := range r.Groups {
		exp.Groups = append(exp.Groups, domain.ExperimentGroup{
			Name:   g.Name,
			Ratio:  g.Ratio,
			Config: datatypes.JSONMap(g.Config),
		})
	}

	return exp
}

func (h *ExperimentAdminHandler) List(c echo.Context) error {
	exps, err := h.experimentService.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(exps))
}

func (h *ExperimentAdminHandler) Get(c echo.Context) error {
	exp, err := h.experimentService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(exp))
}

func (h *ExperimentAdminHandler) Create(c echo.Context) error {
	var req ExperimentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	exp := req.toDomain()
	if err := h.experimentService.Create(c.Request().Context(), &exp); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(exp))
}

func (h *ExperimentAdminHandler) Update(c echo.Context) error {
	var req ExperimentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	exp := req.toDomain()
	exp.ID = c.Param("id")
	if err := h.experimentService.Update(c.Request().Context(), &exp); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(exp))
}

func (h *ExperimentAdminHandler) Delete(c echo.Context) error {
	if err := h.experimentService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("experiment deleted"))
}

func (h *ExperimentAdminHandler) Enable(c echo.Context) error {
	return h.setStatus(c, domain.ExperimentStatusRunning)
}

func (h *ExperimentAdminHandler) Disable(c echo.Context) error {
	return h.setStatus(c, domain.ExperimentStatusPaused)
}

func (h *ExperimentAdminHandler) Complete(c echo.Context) error {
	return h.setStatus(c, domain.ExperimentStatusCompleted)
}

func (h *ExperimentAdminHandler) setStatus(c echo.Context, status string) error {
	if err := h.experimentService.SetStatus(c.Request().Context(), c.Param("id"), status); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"status": status}))
}

// GET /api/v1/admin/experiments/:id/group?user_id=42
// Resolves which group a user would land in without serving a page.
func (h *ExperimentAdminHandler) ResolveGroup(c echo.Context) error {
	userID, err := strconv.ParseUint(c.QueryParam("user_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid user_id"})
	}

	group, ok := h.experimentService.ResolveGroup(c.Request().Context(), uint(userID), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"assigned": false}))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"assigned": true, "group": group}))
}
