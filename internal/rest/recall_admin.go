package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"campusCanteen/business/recallmetrics"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type (
	RecallAdminHandler struct {
		recallService RecallService
	}

	RecallService interface {
		Evaluate(ctx context.Context, k, days, sampleSize int) (recallmetrics.Report, error)
	}
)

func NewRecallAdminHandler(svc RecallService) *RecallAdminHandler {
	return &RecallAdminHandler{
		recallService: svc,
	}
}

// GET /api/v1/admin/recommend/recall-quality?k=10&days=7&sampleSize=100
func (h *RecallAdminHandler) RecallQuality(c echo.Context) error {
	k, _ := strconv.Atoi(c.QueryParam("k"))
	days, _ := strconv.Atoi(c.QueryParam("days"))
	sampleSize, _ := strconv.Atoi(c.QueryParam("sampleSize"))

	report, err := h.recallService.Evaluate(c.Request().Context(), k, days, sampleSize)
	if err != nil {
		if errors.Is(err, recallmetrics.ErrAllUsersFailed) {
			return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(report))
}
