package router

import (
	"github.com/labstack/echo/v4"

	"github.com/lastcrumb/surplusbag/internal/handler"
	"github.com/lastcrumb/surplusbag/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /v1/admin, protected by
// the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminSettingsHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.GET("/settings", a.GetSettings)
	g.PUT("/settings", a.PutSettings)
}
