package container

import (
	"fmt"

	"github.com/lyzr/cookbook/cmd/content-api/repository"
	"github.com/lyzr/cookbook/cmd/content-api/service"
	"github.com/lyzr/cookbook/common/bootstrap"
	"github.com/lyzr/cookbook/common/linker"
	"github.com/lyzr/cookbook/common/ratelimit"
	"github.com/lyzr/cookbook/common/storage"
	"github.com/lyzr/cookbook/common/upload"
	"github.com/lyzr/cookbook/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components  *bootstrap.Components
	RateLimiter *ratelimit.RateLimiter // nil without Redis

	// Repositories
	DocumentRepo *repository.DocumentRepository // nil without a database

	// Services
	Pipeline        *upload.Pipeline
	UploadService   *service.UploadService
	LinkService     *service.LinkService
	DocumentService *service.DocumentService // nil without a database
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	destinations, err := storage.NewLocalDestinations(cfg.Upload.Destinations)
	if err != nil {
		return nil, fmt.Errorf("failed to configure upload destinations: %w", err)
	}

	pipeline, err := upload.New(upload.Config{
		Destinations: destinations,
		PublicPrefix: cfg.Upload.PublicPrefix,
		Policy: validation.Policy{
			AllowedTypes: cfg.Upload.AllowedTypes,
			MaxBytes:     cfg.Upload.MaxBytes,
		},
		OptimizeMaxWidth: cfg.Upload.OptimizeMaxWidth,
		OptimizeQuality:  cfg.Upload.OptimizeQuality,
		AVIFQuality:      cfg.Upload.AVIFQuality,
		DisableAVIF:      !cfg.Upload.OptimizeAVIF,
	},
		upload.WithLogger(components.Logger),
		upload.WithRecorder(components.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload pipeline: %w", err)
	}

	c := &Container{
		Components:    components,
		Pipeline:      pipeline,
		UploadService: service.NewUploadService(pipeline, cfg.Upload.PublicBaseURL, components.Logger),
	}

	if components.Redis != nil {
		limits := ratelimit.LimitsFor(int64(cfg.RateLimit.Global), int64(cfg.RateLimit.User))
		c.RateLimiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger, ratelimit.WithLimits(limits))
	}

	rewriter := linker.NewRegexRewriter()
	var catalog service.CatalogSource
	if components.DB != nil {
		c.DocumentRepo = repository.NewDocumentRepository(components.DB)
		c.DocumentService = service.NewDocumentService(
			c.DocumentRepo,
			components.Cache,
			cfg.Cache.DefaultTTL,
			rewriter,
			components.Metrics,
			components.Logger,
		)
		catalog = c.DocumentService
	}

	c.LinkService = service.NewLinkService(
		rewriter,
		linker.NewSuggester(cfg.Links.PathPrefix, cfg.Links.SuggestLimit),
		catalog,
		service.NewCatalogFilter(),
		components.Metrics,
		components.Logger,
	)

	components.Logger.Info("container initialized",
		"destinations", len(destinations),
		"documents", c.DocumentService != nil,
		"rate_limit", c.RateLimiter != nil)

	return c, nil
}
