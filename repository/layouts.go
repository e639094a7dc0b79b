package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"stockboard/models"
	"stockboard/observability"

	"github.com/jackc/pgx/v5"
)

// GetLayout returns the saved dashboard layout for a user, or nil if the
// user has never saved one.
func (r *Repository) GetLayout(ctx context.Context, userID string) (*models.DashboardLayout, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "dashboard_layouts")

	var layout models.DashboardLayout
	var widgetsJSON []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, widgets, is_default, last_updated
		FROM dashboard_layouts
		WHERE user_id = $1
	`, userID).Scan(&layout.ID, &layout.UserID, &widgetsJSON, &layout.IsDefault, &layout.LastUpdated)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "dashboard_layouts")
		return nil, fmt.Errorf("failed to query layout: %w", err)
	}

	if err := json.Unmarshal(widgetsJSON, &layout.Widgets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout widgets: %w", err)
	}

	return &layout, nil
}

// SaveLayout persists a user's dashboard layout, replacing any previous one
func (r *Repository) SaveLayout(ctx context.Context, layout *models.DashboardLayout) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "dashboard_layouts")

	widgetsJSON, err := json.Marshal(layout.Widgets)
	if err != nil {
		return fmt.Errorf("failed to marshal layout widgets: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO dashboard_layouts (id, user_id, widgets, is_default, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET id = EXCLUDED.id, widgets = EXCLUDED.widgets,
		              is_default = EXCLUDED.is_default, last_updated = EXCLUDED.last_updated
	`, layout.ID, layout.UserID, widgetsJSON, layout.IsDefault, layout.LastUpdated)

	if err != nil {
		metrics.RecordDBError("upsert", "dashboard_layouts")
		return fmt.Errorf("failed to save layout: %w", err)
	}

	return nil
}

// DeleteLayout removes a user's saved layout. Used by the reset operation;
// a missing row is not an error.
func (r *Repository) DeleteLayout(ctx context.Context, userID string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "dashboard_layouts")

	_, err := r.db.Exec(ctx, `DELETE FROM dashboard_layouts WHERE user_id = $1`, userID)
	if err != nil {
		metrics.RecordDBError("delete", "dashboard_layouts")
		return fmt.Errorf("failed to delete layout: %w", err)
	}

	return nil
}
