package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/service"
)

// ConsumerHandler groups dependencies for consumers to view and cancel
// their own reservations.  All methods assume that JWT authentication and
// role validation has already been performed by middleware.
type ConsumerHandler struct {
	ResRepo *repository.ReservationRepo
	Svc     *service.ReservationService
}

// NewConsumerHandler constructs a ConsumerHandler.  All dependencies must
// be non-nil.
func NewConsumerHandler(resRepo *repository.ReservationRepo, svc *service.ReservationService) *ConsumerHandler {
	if resRepo == nil || svc == nil {
		panic("nil dependency passed to NewConsumerHandler")
	}
	return &ConsumerHandler{ResRepo: resRepo, Svc: svc}
}

// reservationJSON shapes a reservation for API responses.  The pickup code
// is included only for the owning consumer.
func reservationJSON(res *model.Reservation, includeCode bool) echo.Map {
	m := echo.Map{
		"id":            res.ID,
		"restaurant_id": res.RestaurantID,
		"pickup_date":   res.PickupDate,
		"amount_cents":  res.AmountCents,
		"status":        res.Status,
		"created_at":    res.CreatedAt,
		"updated_at":    res.UpdatedAt,
	}
	if includeCode {
		m["pickup_code"] = res.PickupCode
	}
	return m
}

// ListReservations handles GET /v1/reservations.  It returns the calling
// consumer's reservations, newest first.
func (h *ConsumerHandler) ListReservations(c echo.Context) error {
	consumerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.ResRepo.ListByConsumer(c.Request().Context(), consumerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		out = append(out, reservationJSON(&items[i], true))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// GetReservation handles GET /v1/reservations/:id for the owning consumer.
func (h *ConsumerHandler) GetReservation(c echo.Context) error {
	consumerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.ResRepo.GetByID(c.Request().Context(), resID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
	}
	if res.ConsumerID != consumerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": reservationJSON(res, true)})
}

// CancelReservation handles POST /v1/reservations/:id/cancel.  Only a
// PENDING reservation can be cancelled; the payment hold is voided and the
// inventory unit returns to the pool.
func (h *ConsumerHandler) CancelReservation(c echo.Context) error {
	consumerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.CancelByConsumer(c.Request().Context(), resID, consumerID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": reservationJSON(res, true)})
}
