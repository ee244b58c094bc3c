package handler

// This file defines HTTP handlers for merchants to work their pending
// reservation queue: accept (captures the payment hold), decline (voids
// it), and mark picked up.  Ownership of the underlying restaurant is
// enforced on every call; capture failures leave the reservation PENDING
// and surface as a retryable 502 so the merchant can try again.

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/service"
	"github.com/lastcrumb/surplusbag/internal/settlement"
)

// MerchantReservationHandler groups dependencies for merchant-side
// reservation management.
type MerchantReservationHandler struct {
	ResRepo    *repository.ReservationRepo
	CfgRepo    *repository.BagConfigRepo
	Svc        *service.ReservationService
	Settlement *settlement.Service
}

// NewMerchantReservationHandler constructs the handler.  All dependencies
// must be non-nil.
func NewMerchantReservationHandler(resRepo *repository.ReservationRepo, cfgRepo *repository.BagConfigRepo, svc *service.ReservationService, st *settlement.Service) *MerchantReservationHandler {
	if resRepo == nil || cfgRepo == nil || svc == nil || st == nil {
		panic("nil dependency passed to NewMerchantReservationHandler")
	}
	return &MerchantReservationHandler{ResRepo: resRepo, CfgRepo: cfgRepo, Svc: svc, Settlement: st}
}

// restaurantOf resolves the calling merchant's restaurant, or writes an
// error response and returns false.
func (h *MerchantReservationHandler) restaurantOf(c echo.Context) (uint64, bool) {
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

// ListReservations handles GET /v1/merchant/reservations?status=.  It
// returns the merchant's reservations, optionally filtered by status,
// including pickup codes so staff can match consumers at the counter.
func (h *MerchantReservationHandler) ListReservations(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	status := model.Status(c.QueryParam("status"))
	items, err := h.ResRepo.ListByRestaurant(c.Request().Context(), restaurantID, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		m := reservationJSON(&items[i], true)
		m["consumer_id"] = items[i].ConsumerID
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// decide shares the accept/decline plumbing.
func (h *MerchantReservationHandler) decide(c echo.Context, accept bool) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.Decide(c.Request().Context(), resID, ownerID, accept)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is no longer pending"})
		case errors.Is(err, payment.ErrCaptureFailed):
			// The reservation stays PENDING; the merchant can retry.
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment capture failed, try again"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to apply decision"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": reservationJSON(res, true)})
}

// AcceptReservation handles POST /v1/merchant/reservations/:id/accept.
func (h *MerchantReservationHandler) AcceptReservation(c echo.Context) error {
	return h.decide(c, true)
}

// DeclineReservation handles POST /v1/merchant/reservations/:id/decline.
func (h *MerchantReservationHandler) DeclineReservation(c echo.Context) error {
	return h.decide(c, false)
}

// MarkPickedUp handles POST /v1/merchant/reservations/:id/pickup.  The
// optional body field "code" is checked case-insensitively against the
// reservation's pickup code.
func (h *MerchantReservationHandler) MarkPickedUp(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Svc.MarkPickedUp(c.Request().Context(), resID, ownerID, body.Code)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, service.ErrPickupCodeMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "pickup code mismatch"})
		case errors.Is(err, repository.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not accepted"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to complete pickup"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": reservationJSON(res, true)})
}

// SweepPayouts handles POST /v1/merchant/payouts/sweep.  It runs the
// pending-transfer sweep for the calling merchant's restaurant, typically
// triggered right after their payout account becomes active.  Per-record
// failures are reported without aborting the batch.
func (h *MerchantReservationHandler) SweepPayouts(c echo.Context) error {
	restaurantID, ok := h.restaurantOf(c)
	if !ok {
		return nil
	}
	report, err := h.Settlement.SweepPendingTransfers(c.Request().Context(), restaurantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payout sweep failed"})
	}
	failures := make([]echo.Map, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, echo.Map{"payout_id": f.PayoutID, "error": f.Err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"backfilled":  report.Backfilled,
		"transferred": report.Transferred,
		"skipped":     report.Skipped,
		"failures":    failures,
	})
}
