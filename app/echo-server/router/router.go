package router

import (
	"campusCanteen/internal/middleware"
	"campusCanteen/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetRecommendRoutes(api *echo.Group, handler *rest.RecommendHandler, health *rest.HealthHandler) {
	reco := api.Group("/recommend")
	reco.GET("/health", health.Health)

	authed := api.Group("/recommend", middleware.AuthMiddleware())
	authed.POST("", handler.Recommend)
	authed.POST("/similar/:dishId", handler.Similar)
	authed.POST("/personal", handler.Personal)
}

func SetEventRoutes(api *echo.Group, handler *rest.EventHandler) {
	events := api.Group("/events", middleware.AuthMiddleware())
	events.POST("/click", handler.Click)
	events.POST("/favorite", handler.Favorite)
	events.POST("/review", handler.Review)
	events.POST("/dislike", handler.Dislike)
	events.GET("/chain/:requestId", handler.Chain)

	analytics := api.Group("/analytics", middleware.AuthMiddleware())
	analytics.GET("/funnel", handler.Funnel)
	analytics.GET("/dish/:dishId/ctr", handler.DishCTR)
	analytics.GET("/experiment", handler.ExperimentMetrics, middleware.AdminOnly())
}

func SetExperimentAdminRoutes(api *echo.Group, handler *rest.ExperimentAdminHandler) {
	admin := api.Group("/admin/experiments", middleware.AuthMiddleware(), middleware.AdminOnly())

	admin.GET("", handler.List)
	admin.GET("/:id", handler.Get)
	admin.POST("", handler.Create)
	admin.PUT("/:id", handler.Update)
	admin.DELETE("/:id", handler.Delete)
	admin.POST("/:id/enable", handler.Enable)
	admin.POST("/:id/disable", handler.Disable)
	admin.POST("/:id/complete", handler.Complete)
	admin.GET("/:id/group", handler.ResolveGroup)
}

func SetRecallAdminRoutes(api *echo.Group, handler *rest.RecallAdminHandler) {
	admin := api.Group("/admin", middleware.AuthMiddleware(), middleware.AdminOnly())
	admin.GET("/recommend/recall-quality", handler.RecallQuality)
}
