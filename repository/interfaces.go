package repository

import (
	"context"
	"time"

	"stockboard/internal/settings"
	"stockboard/models"

	"github.com/google/uuid"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Dashboard layouts
	GetLayout(ctx context.Context, userID string) (*models.DashboardLayout, error)
	SaveLayout(ctx context.Context, layout *models.DashboardLayout) error
	DeleteLayout(ctx context.Context, userID string) error

	// Layout presets
	ListPresets(ctx context.Context, userID string) ([]models.PresetLayout, error)
	GetPreset(ctx context.Context, id uuid.UUID) (*models.PresetLayout, error)
	CreatePreset(ctx context.Context, preset *models.PresetLayout) error
	DeletePreset(ctx context.Context, id uuid.UUID, userID string) (bool, error)
	CountPresetsByUser(ctx context.Context, userID string) (int, error)

	// API keys
	GetAPIKey(ctx context.Context, serviceName string) (*settings.APIKeyModel, error)
	GetAllAPIKeys(ctx context.Context) ([]settings.APIKeyModel, error)
	UpsertAPIKey(ctx context.Context, apiKey *settings.APIKeyModel) error
	DeleteAPIKey(ctx context.Context, serviceName string) error

	// Server-side market data cache
	GetCachedData(ctx context.Context, symbol, dataType string) (map[string]interface{}, error)
	SetCachedData(ctx context.Context, symbol, dataType string, data map[string]interface{}, ttl time.Duration) error
	InvalidateCache(ctx context.Context, symbol, dataType string) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
