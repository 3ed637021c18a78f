// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/docuquery/backend/internal/config"
)

// RegisterRoutes registers all API routes with the Echo instance.
// Document mutation routes require an administrative principal; reads and
// questions require any authenticated principal; health is open.
func RegisterRoutes(e *echo.Echo, h *Handler, cfg *config.AppConfig) {
	e.GET("/api/health", h.HandleHealth)

	auth := RequireAuth(cfg.Security.PrincipalHeader)
	admin := RequireAdmin(cfg)

	docs := e.Group("/api/documents", auth)
	docs.GET("", h.HandleListDocuments)
	docs.POST("/:fileName/ingest", h.HandleIngest, admin)
	docs.DELETE("/:fileName", h.HandleRemove, admin)
	docs.GET("/:fileName/text", h.HandleGetText, admin)
	docs.GET("/:fileName/status", h.HandleGetStatus, admin)

	e.POST("/api/ask", h.HandleAsk, auth)
	e.GET("/api/history", h.HandleHistory(cfg), auth)
}
