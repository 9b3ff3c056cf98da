package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"campusCanteen/business/events"
	"campusCanteen/domain"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

type (
	EventHandler struct {
		validate     *validator.Validate
		eventService EventService
	}

	EventService interface {
		Append(ctx context.Context, event domain.RecommendEvent) error
		Chain(ctx context.Context, requestID string) ([]domain.RecommendEvent, error)
		DishCTR(ctx context.Context, dishID uint64, days int) (events.CTRStats, error)
		UserFunnel(ctx context.Context, userID uint, days int) (events.Funnel, error)
		ExperimentGroupMetrics(ctx context.Context, experiment, group string, days int) (events.GroupMetrics, error)
	}

	EventRequest struct {
		RequestID string `json:"request_id" validate:"required"`
		DishID    uint64 `json:"dish_id" validate:"required"`
		Position  int    `json:"position"`
		Rating    int    `json:"rating"`
		Scene     string `json:"scene"`
		Reason    string `json:"reason"` // dislike events only
	}
)

func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{
		validate:     validator.New(),
		eventService: svc,
	}
}

func (h *EventHandler) Click(c echo.Context) error {
	return h.append(c, domain.EventTypeClick)
}

func (h *EventHandler) Favorite(c echo.Context) error {
	return h.append(c, domain.EventTypeFavorite)
}

func (h *EventHandler) Review(c echo.Context) error {
	return h.append(c, domain.EventTypeReview)
}

func (h *EventHandler) Dislike(c echo.Context) error {
	return h.append(c, domain.EventTypeDislike)
}

func (h *EventHandler) append(c echo.Context, eventType string) error {
	uidVal := c.Get("user_id")
	userID, ok := uidVal.(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	event := domain.RecommendEvent{
		RequestID: req.RequestID,
		UserID:    userID,
		DishID:    req.DishID,
		EventType: eventType,
		Position:  req.Position,
		Rating:    req.Rating,
		Scene:     req.Scene,
	}
	if req.Reason != "" {
		event.Extra = datatypes.JSONMap{"reason": req.Reason}
	}

	if err := h.eventService.Append(c.Request().Context(), event); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("event recorded"))
}

// GET /api/v1/events/chain/:requestId
func (h *EventHandler) Chain(c echo.Context) error {
	requestID := c.Param("requestId")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "request id is required"})
	}

	chain, err := h.eventService.Chain(c.Request().Context(), requestID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(chain))
}

// GET /api/v1/analytics/dish/:dishId/ctr?days=7
func (h *EventHandler) DishCTR(c echo.Context) error {
	dishID, err := strconv.ParseUint(c.Param("dishId"), 10, 64)
	if err != nil || dishID == 0 {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid dish id"})
	}

	days, _ := strconv.Atoi(c.QueryParam("days"))

	stats, err := h.eventService.DishCTR(c.Request().Context(), dishID, days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}

// GET /api/v1/analytics/experiment?experiment=weights-v2&group=treatment&days=7
func (h *EventHandler) ExperimentMetrics(c echo.Context) error {
	experiment := c.QueryParam("experiment")
	group := c.QueryParam("group")
	days, _ := strconv.Atoi(c.QueryParam("days"))

	metrics, err := h.eventService.ExperimentGroupMetrics(c.Request().Context(), experiment, group, days)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(metrics))
}

// GET /api/v1/analytics/funnel?days=7
func (h *EventHandler) Funnel(c echo.Context) error {
	uidVal := c.Get("user_id")
	userID, ok := uidVal.(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	days, _ := strconv.Atoi(c.QueryParam("days"))

	funnel, err := h.eventService.UserFunnel(c.Request().Context(), userID, days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(funnel))
}
