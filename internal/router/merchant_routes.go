package router

import (
	"github.com/labstack/echo/v4"

	"github.com/lastcrumb/surplusbag/internal/handler"
	"github.com/lastcrumb/surplusbag/internal/middleware"
)

// RegisterMerchant registers MERCHANT-scoped endpoints under /v1/merchant.
// All routes require a valid JWT and the MERCHANT role; each handler then
// resolves the caller's own restaurant, so a merchant can never touch
// another restaurant's data.
func RegisterMerchant(e *echo.Echo, cfg *handler.MerchantConfigHandler, res *handler.MerchantReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/merchant",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("MERCHANT"),
	)

	// ---- Offer configuration ----
	g.GET("/bag", cfg.GetBagConfig)
	g.PUT("/bag", cfg.PutBagConfig)

	// ---- Daily overrides ----
	g.GET("/overrides", cfg.ListOverrides)
	g.PUT("/overrides/:date", cfg.PutOverride)
	g.DELETE("/overrides/:date", cfg.DeleteOverride)

	// ---- Reservation queue ----
	g.GET("/reservations", res.ListReservations)
	g.POST("/reservations/:id/accept", res.AcceptReservation)
	g.POST("/reservations/:id/decline", res.DeclineReservation)
	g.POST("/reservations/:id/pickup", res.MarkPickedUp)

	// ---- Payouts ----
	g.POST("/payouts/sweep", res.SweepPayouts)
}
