package handler

// This file defines the consumer checkout endpoints.  Checkout is a
// two-step flow: POST /v1/checkout fails fast on exhausted stock and
// creates a manual-capture session at the payment processor, and
// POST /v1/checkout/verify idempotently turns a finished session into a
// PENDING reservation.  No reservation row exists between the two steps.

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/service"
)

// CheckoutHandler exposes checkout initiation and verification.
type CheckoutHandler struct {
	Svc *service.ReservationService
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(svc *service.ReservationService) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Svc: svc}
}

// StartCheckout handles POST /v1/checkout.  The request body carries the
// restaurant and pickup date.  On success the consumer is redirected to
// the returned checkout URL; stock and authorization failures surface
// before any reservation exists.
func (h *CheckoutHandler) StartCheckout(c echo.Context) error {
	consumerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		RestaurantID uint64 `json:"restaurant_id"`
		PickupDate   string `json:"pickup_date"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.RestaurantID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "restaurant_id is required"})
	}
	if !validDate(body.PickupDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pickup_date must be YYYY-MM-DD"})
	}
	sess, err := h.Svc.StartCheckout(c.Request().Context(), consumerID, body.RestaurantID, body.PickupDate)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOutOfStock):
			return c.JSON(http.StatusConflict, echo.Map{"error": "out of stock"})
		case errors.Is(err, service.ErrMaintenance):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "maintenance"})
		case errors.Is(err, payment.ErrAuthorizationFailed):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment authorization failed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start checkout"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"session_ref":  sess.SessionRef,
		"checkout_url": sess.CheckoutURL,
	})
}

// VerifyCheckout handles POST /v1/checkout/verify.  It is idempotent: the
// first call for a paid session claims an inventory unit and creates the
// reservation; every later call returns the same reservation.  When stock
// ran out between checkout and verification the payment hold is released
// and 409 is returned.
func (h *CheckoutHandler) VerifyCheckout(c echo.Context) error {
	consumerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SessionRef   string `json:"session_ref"`
		RestaurantID uint64 `json:"restaurant_id"`
		PickupDate   string `json:"pickup_date"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.SessionRef == "" || body.RestaurantID == 0 || !validDate(body.PickupDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_ref, restaurant_id and pickup_date are required"})
	}
	res, err := h.Svc.CreateFromVerifiedCheckout(c.Request().Context(), body.SessionRef, consumerID, body.RestaurantID, body.PickupDate)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOutOfStock):
			return c.JSON(http.StatusConflict, echo.Map{"error": "out of stock"})
		case errors.Is(err, payment.ErrSessionNotPaid):
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "checkout session not paid"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to verify checkout"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"pickup_code":    res.PickupCode,
		"status":         res.Status,
		"pickup_date":    res.PickupDate,
		"amount_cents":   res.AmountCents,
	})
}
