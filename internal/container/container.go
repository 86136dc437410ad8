package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/neuravision/neuravision/internal/analyzer"
	"github.com/neuravision/neuravision/internal/config"
	"github.com/neuravision/neuravision/internal/factory"
	"github.com/neuravision/neuravision/internal/logger"
	"github.com/neuravision/neuravision/internal/observer"
	"github.com/neuravision/neuravision/internal/provider"
	"github.com/neuravision/neuravision/internal/repository"
	"github.com/neuravision/neuravision/internal/service"
	"github.com/neuravision/neuravision/internal/session"
	"github.com/neuravision/neuravision/internal/strategy"
	"github.com/neuravision/neuravision/internal/transport"
	"github.com/neuravision/neuravision/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	events               *observer.EventPublisher
	metrics              *observer.MetricsObserver
	imageAnalyzer        analyzer.ImageAnalyzer
	sessions             *session.Store
	imageRepository      repository.ImageRepository
	imageAnalysisService service.ImageAnalysisService
	handler              http.Handler
}

// AnalysisOptions maps configuration onto pipeline options
func AnalysisOptions(cfg *config.Config) analyzer.AnalysisOptions {
	opts := analyzer.DefaultOptions().
		WithModel(cfg.Provider.Model).
		WithMaxTokens(cfg.Provider.MaxTokens).
		WithJPEGQuality(cfg.Analysis.JPEGQuality).
		WithMaxImageDimension(cfg.Analysis.MaxImageDimension).
		WithBanner(cfg.Analysis.Banner).
		WithErrorPrefix(cfg.Analysis.ErrorPrefix).
		WithCredentialRequiredMessage(cfg.Analysis.CredentialRequiredMessage)
	if cfg.Provider.Temperature != nil {
		opts = opts.WithTemperature(*cfg.Provider.Temperature)
	}
	return opts
}

// URLPolicy maps fetch settings onto the remote location policy
func URLPolicy(cfg *config.Config) validation.URLPolicy {
	return validation.URLPolicy{
		AllowedSchemes:       cfg.Fetch.AllowedSchemes,
		AllowedHosts:         cfg.Fetch.AllowedHosts,
		AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
	}
}

// NewProviderClient creates the chat completion client described by cfg
func NewProviderClient(cfg *config.Config) *provider.Client {
	return provider.NewClient(
		provider.WithBaseURL(cfg.Provider.BaseURL),
		provider.WithTimeout(cfg.Provider.Timeout),
	)
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Lifecycle events
	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	// Build dependency graph
	imageAnalyzer := analyzer.NewPipeline(NewProviderClient(cfg), AnalysisOptions(cfg), events)
	sessions := session.NewStore(cfg.Session.TTL)
	imageRepository := repository.NewSourceImageRepository(
		factory.NewSourceFactory(cfg),
		validation.NewURLValidatorWithPolicy(URLPolicy(cfg)),
		events,
	)

	limits := validation.DefaultImageLimits()
	limits.MaxBytes = cfg.Analysis.MaxImageBytes
	imageAnalysisService := service.NewImageAnalysisService(
		imageAnalyzer,
		imageRepository,
		sessions,
		strategy.DefaultRegistry(),
		validation.NewImageValidatorWithLimits(limits),
		cfg.Analysis.DefaultPrompt,
	)
	handler := transport.NewHandler(imageAnalysisService, sessions, metrics, cfg)

	return &Container{
		config:               cfg,
		events:               events,
		metrics:              metrics,
		imageAnalyzer:        imageAnalyzer,
		sessions:             sessions,
		imageRepository:      imageRepository,
		imageAnalysisService: imageAnalysisService,
		handler:              handler,
	}, nil
}

// Start runs background maintenance until ctx is done
func (c *Container) Start(ctx context.Context) {
	interval := c.config.Session.TTL / 2
	go c.sessions.RunJanitor(ctx, interval)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service
func (c *Container) Service() service.ImageAnalysisService {
	return c.imageAnalysisService
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}
