package handler

// This file defines the public availability endpoint.  Guests and
// consumers use it to see how many surprise bags remain for a restaurant
// on a given date before starting checkout.  The endpoint is read-only and
// sits behind the Redis response cache and rate limiter.

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/repository"
)

// PublicHandler groups the repositories backing unauthenticated browse
// endpoints.
type PublicHandler struct {
	CfgRepo *repository.BagConfigRepo
	OvrRepo *repository.OverrideRepo
	InvRepo *repository.InventoryRepo
}

// NewPublicHandler constructs a PublicHandler.  All dependencies must be
// non-nil.
func NewPublicHandler(cfgRepo *repository.BagConfigRepo, ovrRepo *repository.OverrideRepo, invRepo *repository.InventoryRepo) *PublicHandler {
	if cfgRepo == nil || ovrRepo == nil || invRepo == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{CfgRepo: cfgRepo, OvrRepo: ovrRepo, InvRepo: invRepo}
}

// GetAvailability handles GET /v1/restaurants/:id/availability?date=YYYY-MM-DD.
// It returns the remaining unit count, the pickup window effective for the
// date (override or config default) and whether sales are suspended.  The
// count is advisory; the authoritative admission decision happens at
// checkout verification.
func (h *PublicHandler) GetAvailability(c echo.Context) error {
	restaurantID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid restaurant id"})
	}
	date := c.QueryParam("date")
	if !validDate(date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx := c.Request().Context()
	cfg, err := h.CfgRepo.GetByRestaurant(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "restaurant not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	start, end := cfg.PickupStart, cfg.PickupEnd
	suspended := !cfg.IsActive
	if ovr, err := h.OvrRepo.Get(ctx, restaurantID, date); err == nil {
		if ovr.PickupStart != nil {
			start = *ovr.PickupStart
		}
		if ovr.PickupEnd != nil {
			end = *ovr.PickupEnd
		}
		if ovr.IsSuspended {
			suspended = true
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	remaining, err := h.InvRepo.AvailableUnits(ctx, restaurantID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"restaurant_id":    restaurantID,
		"date":             date,
		"remaining":        remaining,
		"price_cents":      cfg.PriceCents,
		"base_price_cents": cfg.BasePriceCents,
		"pickup_start":     start,
		"pickup_end":       end,
		"suspended":        suspended,
	})
}
