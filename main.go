// Package main runs the stockboard HTTP server: dashboard layouts,
// preset catalog, price predictions and the offline cache behind a
// JSON API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockboard/config"
	"stockboard/dashboard"
	"stockboard/internal/api"
	"stockboard/internal/app"
	"stockboard/internal/settings"
	"stockboard/observability"
	"stockboard/offline"
	"stockboard/predict"
	"stockboard/repository"
	"stockboard/services"
)

func main() {
	// No .env file is fine; plain environment variables still apply.
	_ = godotenv.Load()

	production := os.Getenv("APP_ENV") == "production"
	observability.InitLogger(production)
	observability.InitMetrics()

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	ctx := context.Background()

	// Database is optional: without it the server runs memory-only and
	// queues mutations in the offline cache.
	var repo repository.RepositoryInterface
	if cfg.HasDatabase() {
		r, err := repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("database unavailable, running in degraded mode", "error", err)
		} else {
			repo = r
			observability.Info("connected to database")
		}
	} else {
		observability.Warn("DATABASE_URL not set, layouts will not be persisted")
	}

	// Settings store: encrypted API keys, backed by the database when
	// one is reachable.
	var settingsRepo settings.RepositoryInterface
	if repo != nil {
		settingsRepo = repo
	}
	settingsStore, err := settings.NewStore(os.Getenv("SETTINGS_DIR"), os.Getenv("SETTINGS_PASSPHRASE"), settingsRepo)
	if err != nil {
		observability.Fatal("failed to initialize settings store", "error", err)
	}

	mergeSettingsIntoConfig(cfg, settingsStore)

	// Offline cache
	var cache *offline.CacheService
	if cfg.Cache.Enabled {
		cache, err = offline.NewCacheService(offline.Config{Path: cfg.Cache.Dir})
		if err != nil {
			observability.Warn("offline cache unavailable", "error", err)
			cache = nil
		}
	}

	// External services, each optional
	var llm services.LLMService
	if cfg.HasBedrock() {
		bedrock, err := services.NewBedrockService(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID)
		if err != nil {
			observability.Warn("failed to initialize Bedrock, AI predictions degrade to simulated", "error", err)
		} else {
			llm = bedrock
		}
	} else if cfg.HasOpenAI() {
		openai, err := services.NewOpenAIService(cfg)
		if err != nil {
			observability.Warn("failed to initialize OpenAI, AI predictions degrade to simulated", "error", err)
		} else {
			llm = openai
		}
	} else {
		observability.Warn("no LLM configured, AI predictions run in simulated mode")
	}

	var alpaca *services.AlpacaService
	if cfg.HasAlpaca() {
		alpaca = services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
	}

	var alphaVantage *services.AlphaVantageService
	if cfg.HasAlphaVantage() {
		alphaVantage = services.NewAlphaVantageService(cfg.AlphaVantage.APIKey)
	}

	var news services.NewsProvider
	if cfg.HasNewsAPI() {
		news = services.NewNewsAPIService(cfg.NewsAPI.APIKey)
	} else {
		observability.Warn("NewsAPI key not set, news widget disabled")
	}

	history := services.NewHistoryChain(historyProviders(alpaca, alphaVantage)...)
	if !history.Available() {
		observability.Warn("no market data provider configured, predictions need cached history")
	}

	var quotes services.QuoteProvider
	switch {
	case alpaca != nil:
		quotes = alpaca
	case alphaVantage != nil:
		quotes = alphaVantage
	}

	// Wire the core
	var layoutRepo dashboard.LayoutRepository
	var presetRepo dashboard.PresetRepository
	var appRepo app.RepositoryInterface
	if repo != nil {
		layoutRepo = repo
		presetRepo = repo
		appRepo = repo
	}

	var queue dashboard.SyncQueue
	if cache != nil {
		queue = cache
	}

	application := app.New(cfg, app.Deps{
		Repo:     appRepo,
		Layouts:  dashboard.NewLayoutStore(layoutRepo, queue),
		Presets:  dashboard.NewPresetCatalog(presetRepo, queue),
		Engine:   predict.NewEngine(llm),
		Cache:    cache,
		History:  history,
		Quotes:   quotes,
		News:     news,
		Settings: settingsStore,
	})
	application.Startup(ctx)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		observability.Info("starting server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}

func historyProviders(alpaca *services.AlpacaService, alphaVantage *services.AlphaVantageService) []services.HistoryProvider {
	var providers []services.HistoryProvider
	if alpaca != nil {
		providers = append(providers, alpaca)
	}
	if alphaVantage != nil {
		providers = append(providers, alphaVantage)
	}
	return providers
}

// mergeSettingsIntoConfig lets keys saved through the settings UI fill
// configuration gaps the environment left open. Environment variables
// always win.
func mergeSettingsIntoConfig(cfg *config.Config, store *settings.Store) {
	if c := store.GetAPIKey(settings.ServiceAlpaca); c != nil {
		if cfg.Alpaca.APIKey == "" {
			cfg.Alpaca.APIKey = c.APIKey
			cfg.Alpaca.APISecret = c.APISecret
		}
	}
	if c := store.GetAPIKey(settings.ServiceAlphaVantage); c != nil && cfg.AlphaVantage.APIKey == "" {
		cfg.AlphaVantage.APIKey = c.APIKey
	}
	if c := store.GetAPIKey(settings.ServiceNewsAPI); c != nil && cfg.NewsAPI.APIKey == "" {
		cfg.NewsAPI.APIKey = c.APIKey
	}
	if c := store.GetAPIKey(settings.ServiceOpenAI); c != nil && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = c.APIKey
	}
	if c := store.GetAPIKey(settings.ServiceBedrock); c != nil && cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = c.Region
		cfg.Bedrock.ModelID = c.ModelID
	}
}
