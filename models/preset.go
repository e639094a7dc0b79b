package models

import (
	"time"

	"github.com/google/uuid"
)

// PresetCategory groups preset layouts in the catalog.
type PresetCategory string

const (
	PresetCategorySimple     PresetCategory = "simple"
	PresetCategoryAnalytics  PresetCategory = "analytics"
	PresetCategoryMonitoring PresetCategory = "monitoring"
	PresetCategoryCustom     PresetCategory = "custom"
)

// ValidPresetCategory reports whether c is a known category.
func ValidPresetCategory(c PresetCategory) bool {
	switch c {
	case PresetCategorySimple, PresetCategoryAnalytics, PresetCategoryMonitoring, PresetCategoryCustom:
		return true
	}
	return false
}

// PresetLayout is a named template layout. Widget positions are relative;
// applying a preset clones the templates with fresh widget ids so the same
// preset can be applied to any number of dashboards without id collisions.
type PresetLayout struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    PresetCategory `json:"category"`
	Thumbnail   string         `json:"thumbnail,omitempty"`
	Widgets     []WidgetConfig `json:"widgets"`
	IsPublic    bool           `json:"is_public"`
	CreatedBy   string         `json:"created_by,omitempty"` // empty for built-ins
	CreatedAt   time.Time      `json:"created_at"`
}

// BuiltIn reports whether the preset ships with the catalog. Built-ins
// have no owner and cannot be deleted.
func (p *PresetLayout) BuiltIn() bool {
	return p.CreatedBy == ""
}

// NewPresetLayout snapshots the given widgets into a preset owned by userID.
// Widgets are deep-copied; the caller's layout is never aliased.
func NewPresetLayout(userID, name, description string, category PresetCategory, isPublic bool, widgets []WidgetConfig) *PresetLayout {
	copied := make([]WidgetConfig, len(widgets))
	for i, w := range widgets {
		copied[i] = w.Clone()
	}
	return &PresetLayout{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Category:    category,
		Widgets:     copied,
		IsPublic:    isPublic,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
	}
}
