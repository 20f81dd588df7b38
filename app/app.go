package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"armario-estampados/app/controller"
	"armario-estampados/app/router"
	"armario-estampados/asset"
	"armario-estampados/cache"
	"armario-estampados/capture"
	"armario-estampados/compositor"
	"armario-estampados/config"
	"armario-estampados/db"
	"armario-estampados/pricing"
	"armario-estampados/repository"
	"armario-estampados/service"
)

// assetCacheEntries bounds the in-memory cache when Redis is not configured
const assetCacheEntries = 256

// App is the wired application
type App struct {
	Handler   http.Handler
	reprocess *service.ReprocessJob
	closers   []func() error
}

// Initialize initializes the application
func Initialize(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database connection
	if err := db.InitDB(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{}

	storage, staticDir, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := newCache(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	loader := asset.NewLoader(&http.Client{Timeout: 30 * time.Second}, cfg.AllowedOrigin, cfg.AssetOriginAllowed, store)
	fonts, err := compositor.NewFontBook()
	if err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	renderer, err := newRenderer(cfg, loader, fonts)
	if err != nil {
		return nil, err
	}

	engine, err := pricing.NewEngine(cfg.PricingConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}

	// Initialize repository
	customizationRepo := repository.NewCustomizationRepository(db.DB)

	// Initialize services
	regeneration := service.NewRegenerationService(renderer, storage, customizationRepo, store, service.RegenerationOptions{
		ProductionSize: cfg.ProductionSize,
		PreviewSize:    cfg.PreviewSize,
	})
	var fallback service.Regenerator = regeneration.Fallback()
	if cfg.RegenerationURL != "" {
		fallback = service.NewRegenerationClient(cfg.RegenerationURL, 2*cfg.UploadTimeout)
	}

	background := service.NewBackgroundService(loader, storage)
	captureOpts := capture.DefaultOptions()
	captureOpts.UploadTimeout = cfg.UploadTimeout
	sessions := service.NewSessionService(loader, fonts, storage, background, engine, customizationRepo, fallback, service.SessionOptions{
		PreviewSize:    cfg.PreviewSize,
		ProductionSize: cfg.ProductionSize,
		Capture:        captureOpts,
	})

	reprocess, err := service.NewReprocessJob(regeneration, customizationRepo, sessions, cfg.ReprocessSchedule, service.DefaultReprocessBatch)
	if err != nil {
		return nil, err
	}
	a.reprocess = reprocess

	// Create controllers
	controllers := &router.Controllers{
		Session:      controller.NewSessionController(sessions),
		Regeneration: controller.NewRegenerationController(regeneration, customizationRepo, reprocess),
	}

	a.Handler = router.NewRouter(controllers, router.Options{
		AllowedOrigin:         cfg.AllowedOrigin,
		StaticDir:             staticDir,
		RegenerationPerMinute: cfg.RegenerationPerMinute,
	})

	reprocess.Start()
	return a, nil
}

// Shutdown stops background jobs and releases connections
func (a *App) Shutdown(ctx context.Context) {
	if a.reprocess != nil {
		a.reprocess.Stop(ctx)
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("⚠️  Failed to close resource")
		}
	}
}

// newStorage returns the configured artifact storage and, for the filesystem backend, the
// directory to serve under /static
func newStorage(ctx context.Context, cfg *config.Config) (service.Storage, string, error) {
	switch cfg.StorageBackend {
	case config.StorageDrive:
		drive, err := service.NewDriveStorage(ctx, cfg.CredentialsPath, cfg.CredentialsJSON, cfg.DriveFolderID)
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("folder_id", cfg.DriveFolderID).Msg("✓ Using Google Drive storage")
		return drive, "", nil
	default:
		fs, err := service.NewFileStorage(cfg.StorageDir, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("dir", cfg.StorageDir).Str("base_url", cfg.StorageBaseURL).Msg("✓ Using filesystem storage")
		staticDir := ""
		if u, err := url.Parse(cfg.StorageBaseURL); err == nil && u.Path == "/static" {
			staticDir = fs.BasePath()
		}
		return fs, staticDir, nil
	}
}

func newCache(ctx context.Context, cfg *config.Config, a *App) (cache.Store, error) {
	if cfg.RedisURL != "" {
		redis, err := cache.NewRedisStore(ctx, cfg.RedisURL, "estampados")
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, redis.Close)
		log.Info().Msg("✓ Using Redis cache")
		return redis, nil
	}
	return cache.NewMemoryStore(assetCacheEntries)
}

func newRenderer(cfg *config.Config, loader compositor.ImageLoader, fonts *compositor.FontBook) (service.Renderer, error) {
	if cfg.Renderer == config.RendererChromedp {
		r, err := service.NewChromeRenderer(cfg.ChromePath, 2*cfg.UploadTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chrome renderer: %w", err)
		}
		log.Info().Msg("✓ Using headless Chrome renderer")
		return r, nil
	}
	return service.NewNativeRenderer(loader, fonts), nil
}
