package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"campusCanteen/domain"
	"campusCanteen/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	RecommendHandler struct {
		validate         *validator.Validate
		recommendService RecommendService
	}

	RecommendService interface {
		Recommend(ctx context.Context, req domain.RecommendRequest) (domain.RecommendResponse, error)
	}

	RecommendRequestBody struct {
		Scene                 string                 `json:"scene" validate:"omitempty,oneof=home search similar personal guess_like today"`
		Search                string                 `json:"search"`
		Filter                domain.RecommendFilter `json:"filter"`
		Page                  int                    `json:"page"`
		PageSize              int                    `json:"page_size" validate:"omitempty,max=50"`
		RequestID             string                 `json:"request_id"`
		Exploratory           bool                   `json:"exploratory"`
		Urgency               string                 `json:"urgency" validate:"omitempty,oneof=low high"`
		IncludeScoreBreakdown bool                   `json:"include_score_breakdown"`
	}
)

func NewRecommendHandler(svc RecommendService) *RecommendHandler {
	return &RecommendHandler{
		validate:         validator.New(),
		recommendService: svc,
	}
}

// POST /api/v1/recommend
func (h *RecommendHandler) Recommend(c echo.Context) error {
	uidVal := c.Get("user_id")
	userID, ok := uidVal.(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var body RecommendRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.serve(c, domain.RecommendRequest{
		UserID:                userID,
		Scene:                 body.Scene,
		Search:                body.Search,
		Filter:                body.Filter,
		Pagination:            domain.Pagination{Page: body.Page, PageSize: body.PageSize},
		RequestID:             body.RequestID,
		UserContext:           domain.UserContext{Exploratory: body.Exploratory, Urgency: body.Urgency},
		IncludeScoreBreakdown: body.IncludeScoreBreakdown,
	})
}

// POST /api/v1/recommend/similar/:dishId
func (h *RecommendHandler) Similar(c echo.Context) error {
	uidVal := c.Get("user_id")
	userID, ok := uidVal.(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	dishID, err := strconv.ParseUint(c.Param("dishId"), 10, 64)
	if err != nil || dishID == 0 {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid dish id"})
	}

	var body RecommendRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.serve(c, domain.RecommendRequest{
		UserID:                userID,
		TriggerDishID:         dishID,
		Filter:                body.Filter,
		Pagination:            domain.Pagination{Page: body.Page, PageSize: body.PageSize},
		RequestID:             body.RequestID,
		IncludeScoreBreakdown: body.IncludeScoreBreakdown,
	})
}

// POST /api/v1/recommend/personal
func (h *RecommendHandler) Personal(c echo.Context) error {
	uidVal := c.Get("user_id")
	userID, ok := uidVal.(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var body RecommendRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.serve(c, domain.RecommendRequest{
		UserID:                userID,
		Scene:                 domain.ScenePersonal,
		Filter:                body.Filter,
		Pagination:            domain.Pagination{Page: body.Page, PageSize: body.PageSize},
		RequestID:             body.RequestID,
		UserContext:           domain.UserContext{Exploratory: body.Exploratory, Urgency: body.Urgency},
		IncludeScoreBreakdown: body.IncludeScoreBreakdown,
	})
}

func (h *RecommendHandler) serve(c echo.Context, req domain.RecommendRequest) error {
	start := time.Now()

	resp, err := h.recommendService.Recommend(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	metrics.RecommendLatency.Observe(time.Since(start).Seconds())
	metrics.RecommendRequests.WithLabelValues(resp.Meta.Scene).Inc()
	if len(resp.Items) == 0 {
		metrics.RecommendEmptyPages.WithLabelValues(resp.Meta.Scene).Inc()
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(resp))
}
