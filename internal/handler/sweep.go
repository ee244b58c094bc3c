package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/service"
)

// SweepHandler exposes the expiry sweep over HTTP so a cron scheduler can
// trigger it.  The route sits outside the JWT-protected groups and is
// guarded by a shared secret header instead.
type SweepHandler struct {
	Svc    *service.ReservationService
	Secret string
}

// NewSweepHandler constructs the handler.
func NewSweepHandler(svc *service.ReservationService, secret string) *SweepHandler {
	return &SweepHandler{Svc: svc, Secret: secret}
}

// RunSweep handles POST /internal/sweep.
func (h *SweepHandler) RunSweep(c echo.Context) error {
	got := c.Request().Header.Get("X-Sweep-Secret")
	if h.Secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	expired, err := h.Svc.SweepExpirations(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "sweep finished with errors",
			"expired": expired,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": expired})
}
