package dashboard

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"stockboard/models"
	"stockboard/observability"
	"stockboard/offline"
)

// PresetRepository is the persistence surface the catalog needs.
type PresetRepository interface {
	ListPresets(ctx context.Context, userID string) ([]models.PresetLayout, error)
	CreatePreset(ctx context.Context, preset *models.PresetLayout) error
	DeletePreset(ctx context.Context, id uuid.UUID, userID string) (bool, error)
}

// PresetCatalog serves the built-in presets unioned with user-authored
// and public ones. Built-ins have no owner and cannot be deleted.
type PresetCatalog struct {
	mu       sync.RWMutex
	repo     PresetRepository // nil runs the catalog memory-only
	queue    SyncQueue        // optional
	memory   map[uuid.UUID]*models.PresetLayout
	builtins []models.PresetLayout
}

// NewPresetCatalog creates a catalog. repo and queue may be nil.
func NewPresetCatalog(repo PresetRepository, queue SyncQueue) *PresetCatalog {
	return &PresetCatalog{
		repo:     repo,
		queue:    queue,
		memory:   make(map[uuid.UUID]*models.PresetLayout),
		builtins: builtinPresets(),
	}
}

// GetPresetLayouts returns the presets visible to the user: built-ins,
// the user's own, and everyone's public presets, ordered by category
// then name. Repository failures degrade to the locally known set.
func (c *PresetCatalog) GetPresetLayouts(ctx context.Context, userID string) []models.PresetLayout {
	out := make([]models.PresetLayout, 0, len(c.builtins))
	out = append(out, c.builtins...)

	if c.repo != nil {
		persisted, err := c.repo.ListPresets(ctx, userID)
		if err != nil {
			observability.WithUser(userID).Warn("preset list failed, serving built-ins", "error", err.Error())
		} else {
			out = append(out, persisted...)
		}
	}

	c.mu.RLock()
	for _, p := range c.memory {
		if p.CreatedBy == userID || p.IsPublic {
			out = append(out, *p)
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SaveAsPreset snapshots a layout's widgets into a new preset owned by
// the user. Returns nil when the snapshot cannot be stored anywhere.
func (c *PresetCatalog) SaveAsPreset(ctx context.Context, userID string, layout *models.DashboardLayout, name, description string, category models.PresetCategory, isPublic bool) *models.PresetLayout {
	if layout == nil || name == "" || !models.ValidPresetCategory(category) {
		return nil
	}

	preset := models.NewPresetLayout(userID, name, description, category, isPublic, layout.Widgets)

	if c.repo != nil {
		if err := c.repo.CreatePreset(ctx, preset); err != nil {
			observability.WithUser(userID).Warn("preset persistence failed", "name", name, "error", err.Error())
			// Accept the write offline: keep it locally and queue it for
			// replay against the repository.
			c.mu.Lock()
			c.memory[preset.ID] = preset
			c.mu.Unlock()
			if c.queue != nil {
				c.queue.EnqueueSync(offline.SyncCreatePreset, userID, preset)
			}
			return preset
		}
	} else {
		c.mu.Lock()
		c.memory[preset.ID] = preset
		c.mu.Unlock()
	}

	observability.WithUser(userID).Info("preset created",
		"preset_id", preset.ID.String(), "category", string(category))
	return preset
}

// ApplyPreset clones a preset's widget templates into a fresh widget
// set: every clone gets a new id, relative positions and settings are
// preserved, and the preset itself is never mutated.
func (c *PresetCatalog) ApplyPreset(preset *models.PresetLayout) []models.WidgetConfig {
	if preset == nil {
		return nil
	}
	widgets := make([]models.WidgetConfig, len(preset.Widgets))
	for i, template := range preset.Widgets {
		clone := template.Clone()
		id := uuid.NewString()
		clone.ID = id
		clone.Position.I = id
		widgets[i] = clone
	}
	observability.GetMetrics().RecordPresetApply(string(preset.Category))
	return widgets
}

// GetPreset looks a preset up by id across built-ins, local memory and
// the repository view for this user.
func (c *PresetCatalog) GetPreset(ctx context.Context, userID string, id uuid.UUID) *models.PresetLayout {
	for i := range c.builtins {
		if c.builtins[i].ID == id {
			preset := c.builtins[i]
			return &preset
		}
	}

	c.mu.RLock()
	if p, ok := c.memory[id]; ok {
		c.mu.RUnlock()
		preset := *p
		return &preset
	}
	c.mu.RUnlock()

	if c.repo != nil {
		for _, p := range c.GetPresetLayouts(ctx, userID) {
			if p.ID == id {
				preset := p
				return &preset
			}
		}
	}
	return nil
}

// DeletePreset removes a preset the user owns. Built-ins and presets
// owned by others report false; the ownership rule is also enforced in
// the repository query.
func (c *PresetCatalog) DeletePreset(ctx context.Context, userID string, id uuid.UUID) bool {
	for i := range c.builtins {
		if c.builtins[i].ID == id {
			return false
		}
	}

	c.mu.Lock()
	if p, ok := c.memory[id]; ok {
		if p.CreatedBy != userID {
			c.mu.Unlock()
			return false
		}
		delete(c.memory, id)
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	if c.repo == nil {
		return false
	}

	deleted, err := c.repo.DeletePreset(ctx, id, userID)
	if err != nil {
		observability.WithUser(userID).Warn("preset delete failed", "preset_id", id.String(), "error", err.Error())
		if c.queue != nil {
			c.queue.EnqueueSync(offline.SyncDeletePreset, userID, map[string]string{"preset_id": id.String()})
		}
		return false
	}
	return deleted
}
