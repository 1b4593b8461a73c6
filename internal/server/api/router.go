// Package api exposes the Reelproof HTTP surface: authentication, media
// record management, and the resumable chunked upload endpoints.
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and
// middleware.
func SetupRouter(handler *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(RequestLogger())

	e.GET("/health", handler.HandleHealth)

	e.POST("/api/auth/register", handler.HandleRegister)
	e.POST("/api/auth/login", handler.HandleLogin)
	e.POST("/api/auth/refresh", handler.HandleRefresh)

	authed := e.Group("/api", handler.RequireAuth)
	authed.POST("/records", handler.HandleCreateRecord)
	authed.GET("/records/:id", handler.HandleGetRecord)
	authed.DELETE("/records/:id", handler.HandleDeleteRecord)
	authed.GET("/records/:id/download", handler.HandleDownloadURL)

	authed.HEAD("/uploads/:id", handler.HandleUploadOffset)
	authed.PATCH("/uploads/:id", handler.HandleUploadChunk)

	return e
}
