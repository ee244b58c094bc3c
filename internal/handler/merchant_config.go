package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/repository"
)

// MerchantConfigHandler lets merchants manage their standing bag offer and
// per-date overrides.
type MerchantConfigHandler struct {
	CfgRepo *repository.BagConfigRepo
	OvrRepo *repository.OverrideRepo
}

// NewMerchantConfigHandler constructs the handler.
func NewMerchantConfigHandler(cfgRepo *repository.BagConfigRepo, ovrRepo *repository.OverrideRepo) *MerchantConfigHandler {
	return &MerchantConfigHandler{CfgRepo: cfgRepo, OvrRepo: ovrRepo}
}

func (h *MerchantConfigHandler) restaurantOf(c echo.Context) (uint64, bool) {
	ownerID, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, false
	}
	restaurantID, err := h.CfgRepo.RestaurantOfOwner(c.Request().Context(), ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "no restaurant for this account"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return 0, false
	}
	return restaurantID, true
}

func bagConfigJSON(rec *model.BagConfig) echo.Map {
	return echo.Map{
		"restaurant_id":    rec.RestaurantID,
		"base_price_cents": rec.BasePriceCents,
		"price_cents":      rec.PriceCents,
		"daily_quantity":   rec.DailyQuantity,
		"pickup_start":     rec.PickupStart,
		"pickup_end":       rec.PickupEnd,
		"is_active":        rec.IsActive,
		"image_ref":        rec.ImageRef,
	}
}

// GetBagConfig handles GET /v1/merchant/bag.
func (h *MerchantConfigHandler) GetBagConfig(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	rec, err := h.CfgRepo.GetByRestaurant(c.Request().Context(), restaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no bag configured"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bag config"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": bagConfigJSON(rec)})
}

// PutBagConfig handles PUT /v1/merchant/bag.  The offered price must be
// lower than the stated base price; both are validated here so the
// repository only ever stores consistent rows.
func (h *MerchantConfigHandler) PutBagConfig(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	var body struct {
		BasePriceCents int64   `json:"base_price_cents"`
		PriceCents     int64   `json:"price_cents"`
		DailyQuantity  uint32  `json:"daily_quantity"`
		PickupStart    string  `json:"pickup_start"`
		PickupEnd      string  `json:"pickup_end"`
		IsActive       bool    `json:"is_active"`
		ImageRef       *string `json:"image_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PriceCents <= 0 || body.BasePriceCents <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "prices must be positive"})
	}
	if body.PriceCents >= body.BasePriceCents {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be below base price"})
	}
	if !validClock(body.PickupStart) || !validClock(body.PickupEnd) || body.PickupStart >= body.PickupEnd {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pickup window"})
	}
	rec := &model.BagConfig{
		RestaurantID:   restaurantID,
		BasePriceCents: body.BasePriceCents,
		PriceCents:     body.PriceCents,
		DailyQuantity:  body.DailyQuantity,
		PickupStart:    body.PickupStart,
		PickupEnd:      body.PickupEnd,
		IsActive:       body.IsActive,
		ImageRef:       body.ImageRef,
	}
	if err := h.CfgRepo.Upsert(c.Request().Context(), rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save bag config"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": bagConfigJSON(rec)})
}

func overrideJSON(rec *model.DailyOverride) echo.Map {
	return echo.Map{
		"date":         rec.Date,
		"quantity":     rec.Quantity,
		"pickup_start": rec.PickupStart,
		"pickup_end":   rec.PickupEnd,
		"is_suspended": rec.IsSuspended,
	}
}

// ListOverrides handles GET /v1/merchant/overrides?from=&to=.
func (h *MerchantConfigHandler) ListOverrides(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if !validDate(from) || !validDate(to) || from > to {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date range"})
	}
	items, err := h.OvrRepo.ListRange(c.Request().Context(), restaurantID, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load overrides"})
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		out = append(out, overrideJSON(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// PutOverride handles PUT /v1/merchant/overrides/:date.  Shrinking the
// quantity below the date's already-reserved count is rejected with 409.
func (h *MerchantConfigHandler) PutOverride(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	date := c.Param("date")
	if !validDate(date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	var body struct {
		Quantity    *uint32 `json:"quantity"`
		PickupStart *string `json:"pickup_start"`
		PickupEnd   *string `json:"pickup_end"`
		IsSuspended bool    `json:"is_suspended"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PickupStart != nil && !validClock(*body.PickupStart) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pickup_start"})
	}
	if body.PickupEnd != nil && !validClock(*body.PickupEnd) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pickup_end"})
	}
	rec := &model.DailyOverride{
		RestaurantID: restaurantID,
		Date:         date,
		Quantity:     body.Quantity,
		PickupStart:  body.PickupStart,
		PickupEnd:    body.PickupEnd,
		IsSuspended:  body.IsSuspended,
	}
	if err := h.OvrRepo.Upsert(c.Request().Context(), rec); err != nil {
		if errors.Is(err, repository.ErrOverrideBelowReserved) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "quantity below already reserved count"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save override"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": overrideJSON(rec)})
}

// DeleteOverride handles DELETE /v1/merchant/overrides/:date.
func (h *MerchantConfigHandler) DeleteOverride(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	date := c.Param("date")
	if !validDate(date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	if err := h.OvrRepo.Delete(c.Request().Context(), restaurantID, date); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete override"})
	}
	return c.JSON(http.StatusNoContent, nil)
}
