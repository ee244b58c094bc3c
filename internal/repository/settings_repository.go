package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lastcrumb/surplusbag/internal/model"
)

// SettingsRepo provides access to the single-row platform_settings table.
// Settings are read once per operation that needs them (the commission
// rate is snapshotted into each payout record at creation time), never
// held as live process state.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a new SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// defaultCommissionRate applies when the settings row has never been
// written.
const defaultCommissionRate = 10.0

// Get returns the current platform settings.  A missing row yields the
// defaults rather than an error so a fresh database behaves sensibly.
func (r *SettingsRepo) Get(ctx context.Context) (*model.PlatformSettings, error) {
	const q = `SELECT commission_rate, maintenance_mode, updated_at FROM platform_settings WHERE id = 1`
	var s model.PlatformSettings
	err := r.db.QueryRowContext(ctx, q).Scan(&s.CommissionRate, &s.MaintenanceMode, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.PlatformSettings{CommissionRate: defaultCommissionRate}, nil
		}
		return nil, err
	}
	return &s, nil
}

// Update writes the settings row, creating it on first use.
func (r *SettingsRepo) Update(ctx context.Context, s *model.PlatformSettings) error {
	const q = `INSERT INTO platform_settings (id, commission_rate, maintenance_mode)
	           VALUES (1, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             commission_rate = VALUES(commission_rate),
	             maintenance_mode = VALUES(maintenance_mode)`
	_, err := r.db.ExecContext(ctx, q, s.CommissionRate, s.MaintenanceMode)
	return err
}
