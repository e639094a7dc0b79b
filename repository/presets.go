package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"stockboard/models"
	"stockboard/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListPresets returns presets visible to a user: their own plus public
// ones, ordered by category then name.
func (r *Repository) ListPresets(ctx context.Context, userID string) ([]models.PresetLayout, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "layout_presets")

	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, category, thumbnail, widgets, is_public, created_by, created_at
		FROM layout_presets
		WHERE created_by = $1 OR is_public = TRUE
		ORDER BY category, name
	`, userID)
	if err != nil {
		metrics.RecordDBError("select", "layout_presets")
		return nil, fmt.Errorf("failed to query presets: %w", err)
	}
	defer rows.Close()

	var presets []models.PresetLayout
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			metrics.RecordDBError("select", "layout_presets")
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		presets = append(presets, *preset)
	}

	return presets, rows.Err()
}

// GetPreset returns a single preset by ID, or nil if it does not exist
func (r *Repository) GetPreset(ctx context.Context, id uuid.UUID) (*models.PresetLayout, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "layout_presets")

	row := r.db.QueryRow(ctx, `
		SELECT id, name, description, category, thumbnail, widgets, is_public, created_by, created_at
		FROM layout_presets
		WHERE id = $1
	`, id)

	preset, err := scanPreset(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "layout_presets")
		return nil, fmt.Errorf("failed to query preset: %w", err)
	}

	return preset, nil
}

// CreatePreset stores a user-defined preset
func (r *Repository) CreatePreset(ctx context.Context, preset *models.PresetLayout) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "layout_presets")

	widgetsJSON, err := json.Marshal(preset.Widgets)
	if err != nil {
		return fmt.Errorf("failed to marshal preset widgets: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO layout_presets (id, name, description, category, thumbnail, widgets, is_public, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, preset.ID, preset.Name, preset.Description, preset.Category, preset.Thumbnail,
		widgetsJSON, preset.IsPublic, preset.CreatedBy, preset.CreatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "layout_presets")
		return fmt.Errorf("failed to create preset: %w", err)
	}

	return nil
}

// DeletePreset removes a preset owned by userID. Returns false when no row
// matched, either because the preset does not exist or belongs to someone
// else.
func (r *Repository) DeletePreset(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	if err := r.checkDB(); err != nil {
		return false, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "layout_presets")

	result, err := r.db.Exec(ctx, `
		DELETE FROM layout_presets WHERE id = $1 AND created_by = $2
	`, id, userID)
	if err != nil {
		metrics.RecordDBError("delete", "layout_presets")
		return false, fmt.Errorf("failed to delete preset: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CountPresetsByUser returns how many presets a user has saved. Used to
// enforce the per-user preset cap.
func (r *Repository) CountPresetsByUser(ctx context.Context, userID string) (int, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM layout_presets WHERE created_by = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count presets: %w", err)
	}

	return count, nil
}

// scanPreset scans a preset row into a PresetLayout struct
func scanPreset(row pgx.Row) (*models.PresetLayout, error) {
	var preset models.PresetLayout
	var widgetsJSON []byte

	err := row.Scan(&preset.ID, &preset.Name, &preset.Description, &preset.Category,
		&preset.Thumbnail, &widgetsJSON, &preset.IsPublic, &preset.CreatedBy, &preset.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(widgetsJSON, &preset.Widgets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preset widgets: %w", err)
	}

	return &preset, nil
}
