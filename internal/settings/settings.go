package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ServiceName represents a configurable service
type ServiceName string

const (
	ServiceOpenAI       ServiceName = "openai"
	ServiceAlpaca       ServiceName = "alpaca"
	ServiceAlphaVantage ServiceName = "alpha_vantage"
	ServiceNewsAPI      ServiceName = "newsapi"
	ServiceBedrock      ServiceName = "bedrock"
)

// knownServices lists every service the settings UI exposes
var knownServices = []ServiceName{
	ServiceOpenAI, ServiceAlpaca, ServiceAlphaVantage, ServiceNewsAPI, ServiceBedrock,
}

// APIKeyConfig represents configuration for a single API key
type APIKeyConfig struct {
	ServiceName ServiceName `json:"service_name"`
	APIKey      string      `json:"api_key,omitempty"`
	APISecret   string      `json:"api_secret,omitempty"` // For services like Alpaca that need both
	BaseURL     string      `json:"base_url,omitempty"`   // Optional base URL override
	Region      string      `json:"region,omitempty"`     // For AWS services
	ModelID     string      `json:"model_id,omitempty"`   // For AI services
}

// APIKeyModel is the database row shape for a stored key. Key material is
// encrypted before it reaches the repository; metadata stays plaintext.
type APIKeyModel struct {
	ID                 uuid.UUID
	ServiceName        string
	APIKeyEncrypted    []byte
	APISecretEncrypted []byte
	BaseURL            string
	Region             string
	ModelID            string
}

// RepositoryInterface is the narrow slice of the database layer the
// settings store needs. Defined here to avoid an import cycle with the
// repository package.
type RepositoryInterface interface {
	GetAPIKey(ctx context.Context, serviceName string) (*APIKeyModel, error)
	GetAllAPIKeys(ctx context.Context) ([]APIKeyModel, error)
	UpsertAPIKey(ctx context.Context, apiKey *APIKeyModel) error
	DeleteAPIKey(ctx context.Context, serviceName string) error
}

// Settings holds all user-configurable settings
type Settings struct {
	APIKeys map[ServiceName]*APIKeyConfig `json:"api_keys"`
}

// MaskedAPIKeyConfig represents an API key config with masked secrets
type MaskedAPIKeyConfig struct {
	ServiceName  ServiceName `json:"service_name"`
	APIKey       string      `json:"api_key,omitempty"`
	APISecret    string      `json:"api_secret,omitempty"`
	BaseURL      string      `json:"base_url,omitempty"`
	Region       string      `json:"region,omitempty"`
	ModelID      string      `json:"model_id,omitempty"`
	IsConfigured bool        `json:"is_configured"`
}

// Store manages persistent storage of settings. When a repository is
// available keys live in the database; otherwise they fall back to an
// encrypted local file. A populated file is migrated into an empty
// database on first load.
type Store struct {
	mu       sync.RWMutex
	filePath string
	settings *Settings
	crypto   *Crypto
	repo     RepositoryInterface
}

// NewStore creates a new settings store. repo may be nil for file-only mode.
func NewStore(dataDir string, passphrase string, repo RepositoryInterface) (*Store, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".stockboard")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	crypto, err := NewCrypto(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crypto: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, "settings.enc"),
		crypto:   crypto,
		repo:     repo,
		settings: newDefaultSettings(),
	}

	if repo != nil {
		if err := store.loadFromDB(); err != nil {
			// Empty or unreachable database; try migrating the local file
			if fileErr := store.loadFromFile(); fileErr == nil {
				if migErr := store.saveToDB(); migErr != nil {
					fmt.Printf("warning: failed to migrate settings to database: %v\n", migErr)
				}
			}
		}
		return store, nil
	}

	// File-only mode
	if err := store.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		// Log but don't fail - we'll use defaults
		fmt.Printf("warning: failed to load settings: %v\n", err)
	}

	return store, nil
}

// newDefaultSettings creates empty default settings
func newDefaultSettings() *Settings {
	return &Settings{
		APIKeys: make(map[ServiceName]*APIKeyConfig),
	}
}

// loadFromFile reads settings from the encrypted local file
func (s *Store) loadFromFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	decrypted, err := s.crypto.Decrypt(data)
	if err != nil {
		return fmt.Errorf("failed to decrypt settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(decrypted, &settings); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	s.settings = &settings
	return nil
}

// loadFromDB reads all keys from the repository. Returns an error when the
// database holds no keys, which triggers the file migration path.
func (s *Store) loadFromDB() error {
	models, err := s.repo.GetAllAPIKeys(context.Background())
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return errors.New("no keys in database")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := newDefaultSettings()
	for i := range models {
		config, err := s.decryptModel(&models[i])
		if err != nil {
			return fmt.Errorf("failed to decrypt key for %s: %w", models[i].ServiceName, err)
		}
		settings.APIKeys[config.ServiceName] = config
	}

	s.settings = settings
	return nil
}

// saveToDB persists every in-memory key through the repository
func (s *Store) saveToDB() error {
	s.mu.RLock()
	configs := make([]*APIKeyConfig, 0, len(s.settings.APIKeys))
	for _, config := range s.settings.APIKeys {
		copied := *config
		configs = append(configs, &copied)
	}
	s.mu.RUnlock()

	for _, config := range configs {
		model, err := s.encryptConfig(config)
		if err != nil {
			return err
		}
		if err := s.repo.UpsertAPIKey(context.Background(), model); err != nil {
			return err
		}
	}
	return nil
}

// saveToFile persists settings to the encrypted file
func (s *Store) saveToFile() error {
	s.mu.RLock()
	data, err := json.Marshal(s.settings)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	encrypted, err := s.crypto.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt settings: %w", err)
	}

	if err := os.WriteFile(s.filePath, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// encryptConfig converts a plaintext config into its database row shape
func (s *Store) encryptConfig(config *APIKeyConfig) (*APIKeyModel, error) {
	model := &APIKeyModel{
		ServiceName: string(config.ServiceName),
		BaseURL:     config.BaseURL,
		Region:      config.Region,
		ModelID:     config.ModelID,
	}

	if config.APIKey != "" {
		encrypted, err := s.crypto.Encrypt([]byte(config.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt api key: %w", err)
		}
		model.APIKeyEncrypted = encrypted
	}
	if config.APISecret != "" {
		encrypted, err := s.crypto.Encrypt([]byte(config.APISecret))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
		}
		model.APISecretEncrypted = encrypted
	}

	return model, nil
}

// decryptModel converts a database row back into a plaintext config
func (s *Store) decryptModel(model *APIKeyModel) (*APIKeyConfig, error) {
	config := &APIKeyConfig{
		ServiceName: ServiceName(model.ServiceName),
		BaseURL:     model.BaseURL,
		Region:      model.Region,
		ModelID:     model.ModelID,
	}

	if len(model.APIKeyEncrypted) > 0 {
		decrypted, err := s.crypto.Decrypt(model.APIKeyEncrypted)
		if err != nil {
			return nil, err
		}
		config.APIKey = string(decrypted)
	}
	if len(model.APISecretEncrypted) > 0 {
		decrypted, err := s.crypto.Decrypt(model.APISecretEncrypted)
		if err != nil {
			return nil, err
		}
		config.APISecret = string(decrypted)
	}

	return config, nil
}

// GetAPIKey returns the API key config for a service (unmasked)
func (s *Store) GetAPIKey(service ServiceName) *APIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if config, ok := s.settings.APIKeys[service]; ok {
		// Return a copy to prevent external modification
		configCopy := *config
		return &configCopy
	}
	return nil
}

// SetAPIKey stores an API key configuration
func (s *Store) SetAPIKey(config *APIKeyConfig) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}
	if config.ServiceName == "" {
		return errors.New("service name is required")
	}

	s.mu.Lock()
	s.settings.APIKeys[config.ServiceName] = config
	s.mu.Unlock()

	if s.repo != nil {
		model, err := s.encryptConfig(config)
		if err != nil {
			return err
		}
		return s.repo.UpsertAPIKey(context.Background(), model)
	}
	return s.saveToFile()
}

// DeleteAPIKey removes an API key configuration
func (s *Store) DeleteAPIKey(service ServiceName) error {
	s.mu.Lock()
	delete(s.settings.APIKeys, service)
	s.mu.Unlock()

	if s.repo != nil {
		return s.repo.DeleteAPIKey(context.Background(), string(service))
	}
	return s.saveToFile()
}

// GetMaskedSettings returns all settings with API keys masked
func (s *Store) GetMaskedSettings() map[ServiceName]*MaskedAPIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[ServiceName]*MaskedAPIKeyConfig)

	// Include all known services
	for _, service := range knownServices {
		masked := &MaskedAPIKeyConfig{
			ServiceName:  service,
			IsConfigured: false,
		}

		if config, ok := s.settings.APIKeys[service]; ok {
			masked.APIKey = maskString(config.APIKey)
			masked.APISecret = maskString(config.APISecret)
			masked.BaseURL = config.BaseURL
			masked.Region = config.Region
			masked.ModelID = config.ModelID
			masked.IsConfigured = config.APIKey != "" || config.APISecret != ""
		}

		result[service] = masked
	}

	return result
}

// IsConfigured checks if a service has API keys configured
func (s *Store) IsConfigured(service ServiceName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.settings.APIKeys[service]
	if !ok {
		return false
	}

	if service == ServiceBedrock {
		// Bedrock uses ambient AWS credentials; region and model are the config
		return config.Region != "" && config.ModelID != ""
	}

	return config.APIKey != ""
}

// maskString masks a string showing only last 4 characters
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// GetAllAPIKeys returns all API keys (unmasked) - use with caution
func (s *Store) GetAllAPIKeys() map[ServiceName]*APIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[ServiceName]*APIKeyConfig)
	for k, v := range s.settings.APIKeys {
		configCopy := *v
		result[k] = &configCopy
	}
	return result
}

// ResetAll removes all API keys (for testing purposes)
func (s *Store) ResetAll() error {
	s.mu.Lock()
	services := make([]ServiceName, 0, len(s.settings.APIKeys))
	for k := range s.settings.APIKeys {
		services = append(services, k)
	}
	s.settings.APIKeys = make(map[ServiceName]*APIKeyConfig)
	s.mu.Unlock()

	if s.repo != nil {
		for _, service := range services {
			if err := s.repo.DeleteAPIKey(context.Background(), string(service)); err != nil {
				return err
			}
		}
		return nil
	}
	return s.saveToFile()
}

// ServiceDisplayName returns a human-readable name for a service
func ServiceDisplayName(service ServiceName) string {
	switch service {
	case ServiceOpenAI:
		return "OpenAI"
	case ServiceAlpaca:
		return "Alpaca Markets"
	case ServiceAlphaVantage:
		return "Alpha Vantage"
	case ServiceNewsAPI:
		return "NewsAPI"
	case ServiceBedrock:
		return "AWS Bedrock"
	default:
		return string(service)
	}
}

// ServiceDescription returns a description for a service
func ServiceDescription(service ServiceName) string {
	switch service {
	case ServiceOpenAI:
		return "AI model for price prediction commentary"
	case ServiceAlpaca:
		return "Market data for charts and predictions"
	case ServiceAlphaVantage:
		return "Fallback daily price history and quotes"
	case ServiceNewsAPI:
		return "News articles for the news widget"
	case ServiceBedrock:
		return "Claude models for AI-assisted predictions"
	default:
		return ""
	}
}
