package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/repository"
)

// AdminSettingsHandler exposes platform-wide settings to operators.  The
// routes are mounted behind the admin role middleware; rate changes take
// effect for future payouts only, existing payout records keep the rate
// that was snapshotted when they were created.
type AdminSettingsHandler struct {
	Settings *repository.SettingsRepo
}

// NewAdminSettingsHandler constructs the handler.
func NewAdminSettingsHandler(settings *repository.SettingsRepo) *AdminSettingsHandler {
	return &AdminSettingsHandler{Settings: settings}
}

// GetSettings handles GET /v1/admin/settings.
func (h *AdminSettingsHandler) GetSettings(c echo.Context) error {
	s, err := h.Settings.Get(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load settings"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"commission_rate":  s.CommissionRate,
		"maintenance_mode": s.MaintenanceMode,
	})
}

// PutSettings handles PUT /v1/admin/settings.
func (h *AdminSettingsHandler) PutSettings(c echo.Context) error {
	var body struct {
		CommissionRate  float64 `json:"commission_rate"`
		MaintenanceMode bool    `json:"maintenance_mode"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CommissionRate < 0 || body.CommissionRate > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "commission_rate must be between 0 and 100"})
	}
	s := &model.PlatformSettings{
		CommissionRate:  body.CommissionRate,
		MaintenanceMode: body.MaintenanceMode,
	}
	if err := h.Settings.Update(c.Request().Context(), s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save settings"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"commission_rate":  s.CommissionRate,
		"maintenance_mode": s.MaintenanceMode,
	})
}
