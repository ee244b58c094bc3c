package router

import (
	"github.com/labstack/echo/v4"

	"github.com/lastcrumb/surplusbag/internal/handler"
	"github.com/lastcrumb/surplusbag/internal/middleware"
)

// RegisterConsumer registers consumer-scoped endpoints under /v1.  All
// routes require a valid JWT with the CONSUMER role.  Consumers start and
// verify checkouts, list their own reservations and cancel pending ones.
func RegisterConsumer(e *echo.Echo, ch *handler.CheckoutHandler, rh *handler.ConsumerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CONSUMER"),
	)

	// Checkout is two-phase: start returns a hosted payment URL, verify is
	// called on return and is where the reservation actually comes to exist.
	g.POST("/checkout", ch.StartCheckout)
	g.POST("/checkout/verify", ch.VerifyCheckout)

	g.GET("/reservations", rh.ListReservations)
	g.GET("/reservations/:id", rh.GetReservation)
	g.POST("/reservations/:id/cancel", rh.CancelReservation)
}
