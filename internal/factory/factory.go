package factory

import (
	"context"
	"fmt"

	"go-counter-deck/internal/config"
	"go-counter-deck/internal/llm"
	"go-counter-deck/internal/repository"
	"go-counter-deck/internal/storage"
	"go-counter-deck/internal/storage/postgres"
	"go-counter-deck/internal/storage/sqlite"
	"go-counter-deck/internal/vision"
)

// ExtractorFactory creates vision backends
type ExtractorFactory interface {
	CreateExtractor(cfg *config.Config) (vision.Extractor, error)
}

// AnalyzerFactory creates AI deck analyzers
type AnalyzerFactory interface {
	CreateAnalyzer(ctx context.Context, cfg *config.Config) (llm.DeckAnalyzer, error)
}

// StorageFactory creates the entitlement store and the image archive
type StorageFactory interface {
	CreateStore(ctx context.Context, cfg *config.Config) (repository.Store, error)
	CreateArchive(cfg *config.Config) (storage.ImageArchive, error)
}

type extractorFactory struct{}

// NewExtractorFactory creates a new extractor factory
func NewExtractorFactory() ExtractorFactory {
	return &extractorFactory{}
}

// CreateExtractor creates the extractor named by VISION_BACKEND
func (f *extractorFactory) CreateExtractor(cfg *config.Config) (vision.Extractor, error) {
	switch cfg.VisionBackend {
	case config.VisionBackendStub, "":
		return vision.NewStubExtractor(), nil
	case config.VisionBackendGoogle:
		return vision.NewGoogleExtractor(cfg.GoogleVisionAPIKey, "", cfg.VisionTimeout), nil
	case config.VisionBackendTesseract:
		return vision.NewTesseractExtractor()
	default:
		return nil, fmt.Errorf("unsupported vision backend: %s", cfg.VisionBackend)
	}
}

type analyzerFactory struct{}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory() AnalyzerFactory {
	return &analyzerFactory{}
}

// CreateAnalyzer creates the analyzer named by AI_BACKEND
func (f *analyzerFactory) CreateAnalyzer(ctx context.Context, cfg *config.Config) (llm.DeckAnalyzer, error) {
	llmCfg := llm.Config{
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Timeout:     cfg.AITimeout,
		MaxAttempts: cfg.AIMaxAttempts,
		RateLimit:   cfg.AIRateLimit,
	}

	switch cfg.AIBackend {
	case config.AIBackendGateway, "":
		llmCfg.APIKey = cfg.AIAPIKey
		return llm.NewGatewayClient(llmCfg), nil
	case config.AIBackendGemini:
		llmCfg.APIKey = cfg.GeminiAPIKey
		client, err := llm.NewGeminiClient(ctx, llmCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported AI backend: %s", cfg.AIBackend)
	}
}

type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateStore opens the store named by STORAGE_DRIVER. The SQLite schema is
// migrated on open; PostgreSQL is migrated by the migrate command.
func (f *storageFactory) CreateStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory, "":
		return repository.NewMemoryStore(), nil
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// CreateArchive returns an Azure archive when credentials are configured and
// a no-op archive otherwise
func (f *storageFactory) CreateArchive(cfg *config.Config) (storage.ImageArchive, error) {
	if !cfg.ArchiveEnabled() {
		return storage.NopArchive{}, nil
	}
	archive, err := storage.NewAzureArchive(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.AzureStorageContainer, "")
	if err != nil {
		return nil, err
	}
	return archive, nil
}

// Migrate applies the schema for the configured driver and returns the
// resulting version
func Migrate(cfg *config.Config) (uint, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		return sqlite.Migrate(cfg.SQLitePath)
	case config.StoragePostgres:
		return postgres.Migrate(cfg.DatabaseURL)
	default:
		return 0, fmt.Errorf("storage driver %q has no schema to migrate", cfg.StorageDriver)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	ExtractorFactory ExtractorFactory
	AnalyzerFactory  AnalyzerFactory
	StorageFactory   StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		ExtractorFactory: NewExtractorFactory(),
		AnalyzerFactory:  NewAnalyzerFactory(),
		StorageFactory:   NewStorageFactory(),
	}
}
