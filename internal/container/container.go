package container

import (
	"context"
	"fmt"
	"net/http"

	"go-counter-deck/internal/auth"
	"go-counter-deck/internal/cards"
	"go-counter-deck/internal/config"
	"go-counter-deck/internal/factory"
	"go-counter-deck/internal/llm"
	"go-counter-deck/internal/logger"
	"go-counter-deck/internal/observer"
	"go-counter-deck/internal/repository"
	"go-counter-deck/internal/service"
	"go-counter-deck/internal/storage"
	"go-counter-deck/internal/transport"
	"go-counter-deck/internal/vision"
	"go-counter-deck/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config              *config.Config
	store               repository.Store
	extractor           vision.Extractor
	analyzer            llm.DeckAnalyzer
	archive             storage.ImageArchive
	authenticator       *auth.Authenticator
	metrics             *observer.MetricsObserver
	analysisService     service.DeckAnalysisService
	subscriptionService service.SubscriptionService
	handler             http.Handler
}

// NewContainer builds the dependency graph described by cfg
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	return NewContainerWithFactory(ctx, cfg, factory.NewComponentFactory())
}

// NewContainerWithFactory builds the dependency graph using the given factories
func NewContainerWithFactory(ctx context.Context, cfg *config.Config, f *factory.ComponentFactory) (*Container, error) {
	store, err := f.StorageFactory.CreateStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	c := &Container{config: cfg, store: store}

	if c.extractor, err = f.ExtractorFactory.CreateExtractor(cfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create vision backend: %w", err)
	}
	if c.analyzer, err = f.AnalyzerFactory.CreateAnalyzer(ctx, cfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create AI backend: %w", err)
	}
	if c.archive, err = f.StorageFactory.CreateArchive(cfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create image archive: %w", err)
	}

	events := observer.NewEventPublisher()
	c.metrics = observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(c.metrics)

	c.authenticator = auth.NewAuthenticator(cfg.AuthJWTSecret, store)
	c.analysisService = service.NewDeckAnalysisService(service.Dependencies{
		Extractor: c.extractor,
		Analyzer:  c.analyzer,
		Validator: validation.NewRequestValidator(),
		Catalog:   cards.DefaultCatalog(),
		History:   store,
		Archive:   c.archive,
		Events:    events,
	})
	c.subscriptionService = service.NewSubscriptionService(store, store, cfg.CheckoutURL)

	c.handler = transport.NewHandler(transport.Dependencies{
		Analysis:      c.analysisService,
		Subscriptions: c.subscriptionService,
		Auth:          c.authenticator,
		Metrics:       c.metrics,
		Store:         store,
	}, cfg)

	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Subscriptions returns the subscription service
func (c *Container) Subscriptions() service.SubscriptionService {
	return c.subscriptionService
}

// Authenticator returns the token verifier
func (c *Container) Authenticator() *auth.Authenticator {
	return c.authenticator
}

// Close releases the store and any idle upstream connections
func (c *Container) Close() error {
	if closer, ok := c.analyzer.(interface{ Close() }); ok {
		closer.Close()
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
