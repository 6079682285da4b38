// Package bootstrap dựng toàn bộ dependency từ config, dùng chung cho API và worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/controllers"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/parser"
	"github.com/address-resolver/internal/quality"
	"github.com/address-resolver/internal/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// App các service đã nối với nhau. Field nào không cấu hình thì nil.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *services.Metrics

	Mongo    *mongo.Client
	Store    *services.MongoStore
	Cache    services.ICacheService
	Searcher *search.GazetteerSearcher

	AddressService *services.AddressService
	AdminService   *services.AdminService
	QualityService *services.QualityService

	stopCleanup context.CancelFunc
}

// NewLogger production dùng JSON, các môi trường khác dùng console.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// New kết nối storage, nạp dữ liệu tham chiếu và dựng các service.
// Lỗi nạp dữ liệu tham chiếu là lỗi khởi động.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (app *App, err error) {
	app = &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = services.NewMetrics(app.Registry)

	if cfg.NeedsMongo() {
		if err = app.connectMongo(ctx); err != nil {
			return app, err
		}
	}

	idx, err := app.loadReference(ctx)
	if err != nil {
		return app, err
	}
	stats := idx.Stats()
	logger.Info("Reference index loaded",
		zap.String("reference_version", stats.Version),
		zap.Int("provinces", stats.Provinces),
		zap.Int("districts", stats.Districts),
		zap.Int("wards", stats.Wards),
		zap.Int("aliases", stats.Aliases))

	if err = app.initCache(ctx, idx.Version()); err != nil {
		return app, err
	}

	var suggester services.Suggester
	var publisher services.Publisher
	if cfg.Meilisearch.Enabled {
		app.Searcher, err = search.NewGazetteerSearcher(search.SearchConfig{
			Host:      cfg.Meilisearch.URL,
			APIKey:    cfg.Meilisearch.MasterKey,
			IndexName: cfg.Meilisearch.Index,
			Timeout:   cfg.Meilisearch.Timeout,
		}, logger)
		if err != nil {
			return app, fmt.Errorf("khởi tạo Meilisearch: %w", err)
		}
		suggester, publisher = app.Searcher, app.Searcher
	}

	resolver := parser.NewResolver(idx, cfg.ParserConfig(), logger)
	app.AddressService = services.NewAddressService(resolver, app.Cache, suggester, app.Metrics, services.AddressServiceConfig{
		Thresholds: models.Thresholds{
			High:      cfg.Resolver.Thresholds.High,
			ReviewLow: cfg.Resolver.Thresholds.ReviewLow,
		},
		MaxAddresses: cfg.Jobs.MaxAddresses,
		Workers:      cfg.Jobs.Workers,
	}, logger)

	var refStore services.ReferenceStore
	var reviewStore services.ReviewStore
	if app.Store != nil {
		refStore, reviewStore = app.Store, app.Store
	}
	app.AdminService = services.NewAdminService(refStore, publisher, app.AddressService, cfg.ParserConfig(), cfg.Reference.MinAliasConf, logger)

	taxonomy, err := loadTaxonomy(cfg.Quality.TaxonomyPath)
	if err != nil {
		return app, err
	}
	app.QualityService = services.NewQualityService(reviewStore, quality.NewClassifier(taxonomy, logger),
		app.AddressService, app.Metrics, cfg.Quality.Workers, cfg.Quality.MaxRating, logger)

	return app, nil
}

func (app *App) connectMongo(ctx context.Context) error {
	cfg := app.Config.Mongo
	app.Logger.Info("Connecting to MongoDB", zap.String("database", cfg.Database))

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return fmt.Errorf("kết nối MongoDB: %w", err)
	}
	app.Mongo = client

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}

	app.Store = services.NewMongoStore(client.Database(cfg.Database), app.Logger)
	if err := app.Store.EnsureIndexes(ctx); err != nil {
		return err
	}
	app.Logger.Info("Successfully connected to MongoDB")
	return nil
}

// loadReference nạp snapshot từ file hoặc phiên bản mới nhất trong Mongo, cộng alias học được.
func (app *App) loadReference(ctx context.Context) (*gazetteer.Index, error) {
	cfg := app.Config.Reference

	var version string
	var units []models.AdminUnit
	switch cfg.Source {
	case "mongo":
		if app.Store == nil {
			return nil, services.ErrNoStore
		}
		v, err := app.Store.LatestVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", gazetteer.ErrReferenceLoad, err)
		}
		if units, err = app.Store.LoadUnits(ctx, v); err != nil {
			return nil, fmt.Errorf("%w: %w", gazetteer.ErrReferenceLoad, err)
		}
		version = v
	default:
		snap, err := gazetteer.ReadSnapshotFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		version = snap.Version
		units = models.AdminUnitsFromSnapshot(snap, version)
	}

	var aliases []models.LearnedAliases
	if cfg.LearnedAliases && app.Store != nil {
		var err error
		aliases, err = app.Store.LearnedAliases(ctx)
		if err != nil {
			app.Logger.Warn("Không đọc được learned_aliases, bỏ qua", zap.Error(err))
		}
	}
	return services.BuildReferenceIndex(version, units, aliases, cfg.MinAliasConf)
}

func (app *App) initCache(ctx context.Context, version string) error {
	cfg := app.Config
	switch cfg.Cache.Backend {
	case "redis":
		rcs, err := services.NewRedisCacheService(cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL, app.Logger)
		if err != nil {
			return err
		}
		app.Cache = rcs

	case "mongo", "hybrid":
		mcs, err := services.NewMongoCacheService(app.Store.DB(), cfg.Cache.L1Size, cfg.Cache.TTL, app.Logger)
		if err != nil {
			return err
		}
		if cfg.Cache.Warmup > 0 {
			go func() {
				warmCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if _, err := mcs.WarmUp(warmCtx, version, cfg.Cache.Warmup); err != nil {
					app.Logger.Warn("Warm up cache thất bại", zap.Error(err))
				}
			}()
		}
		app.Cache = mcs
		if cfg.Cache.Backend == "mongo" {
			break
		}

		rcs, err := services.NewRedisCacheService(cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL, app.Logger)
		if err != nil {
			return err
		}
		app.Cache = services.NewHybridCacheService(rcs, mcs, app.Logger)

	default:
		mem := services.NewCacheService(cfg.Cache.TTL)
		cleanupCtx, cancel := context.WithCancel(context.Background())
		app.stopCleanup = cancel
		mem.StartCleanupWorker(cleanupCtx, 10*time.Minute)
		app.Cache = mem
	}

	app.Logger.Info("Cache initialized", zap.String("backend", cfg.Cache.Backend))
	return nil
}

func loadTaxonomy(path string) (*quality.Taxonomy, error) {
	if path == "" {
		return quality.DefaultTaxonomy()
	}
	return quality.LoadTaxonomy(path)
}

// HealthChecks các kiểm tra cho /health và /ready
func (app *App) HealthChecks() map[string]controllers.HealthCheck {
	checks := make(map[string]controllers.HealthCheck)
	if app.Mongo != nil {
		checks["mongodb"] = func(ctx context.Context) error {
			return app.Mongo.Ping(ctx, nil)
		}
	}
	if app.Cache != nil {
		checks["cache"] = func(ctx context.Context) error {
			_, err := app.Cache.GetStats(ctx)
			return err
		}
	}
	return checks
}

// Close đóng cache và ngắt kết nối MongoDB
func (app *App) Close(ctx context.Context) error {
	var errs []error
	if app.stopCleanup != nil {
		app.stopCleanup()
	}
	if app.Cache != nil {
		errs = append(errs, app.Cache.Close())
	}
	if app.Mongo != nil {
		errs = append(errs, app.Mongo.Disconnect(ctx))
	}
	return errors.Join(errs...)
}
