package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/emrgen/docgen/internal/access"
	"github.com/emrgen/docgen/internal/cache"
	"github.com/emrgen/docgen/internal/compress"
	"github.com/emrgen/docgen/internal/config"
	"github.com/emrgen/docgen/internal/job"
	"github.com/emrgen/docgen/internal/queue"
	"github.com/emrgen/docgen/internal/render"
	"github.com/emrgen/docgen/internal/service"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/emrgen/docgen/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App holds the wired services of one process.
type App struct {
	Config    *config.Config
	Store     store.Store
	Adapter   *storage.Adapter
	Templates *service.TemplateService
	Generator *service.Generator
	Documents *service.DocumentService
	Lifecycle *job.Lifecycle
	Events    queue.DocumentQueue

	TemplateCache *cache.TemplateCache
	Previews      *cache.PreviewCache

	redis *redis.Client
}

// NewApp connects the database, bucket, mirror and event queue named by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, err
	}

	docStore := store.NewGormStore(db)
	if err := docStore.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	bucket, err := newBucket(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: docStore}
	app.Adapter = storage.NewAdapter(bucket, storage.Config{
		MinSize:  cfg.Storage.MinSize,
		Attempts: cfg.Storage.Attempts,
		Delay:    cfg.Storage.Delay,
	})

	mirror, err := app.newMirror(bucket)
	if err != nil {
		return nil, err
	}

	app.TemplateCache = cache.NewTemplateCache(cfg.Templates.CacheTTL)
	app.Previews = cache.NewPreviewCache(cache.PreviewConfig{
		TTL:      cfg.Preview.TTL,
		MaxBytes: cfg.Preview.MaxBytes,
		Mirror:   mirror,
	})

	app.Events = queue.NewNopQueue()
	if len(cfg.Kafka.Brokers) > 0 {
		kq, err := queue.NewKafkaQueue(queue.KafkaConfig{
			Brokers:  strings.Join(cfg.Kafka.Brokers, ","),
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			return nil, err
		}
		app.Events = kq
	}

	engine := render.NewEngine(render.Options{
		FontDir:      cfg.Render.FontDir,
		UTF8Font:     cfg.Render.UTF8Font,
		AssetDir:     cfg.Render.AssetDir,
		AssetTimeout: cfg.Render.AssetTimeout,
		AssetHosts:   cfg.Render.AssetHosts,
	})

	app.Templates = service.NewTemplateService(docStore, app.TemplateCache, app.Previews, engine)
	app.Generator = service.NewGenerator(docStore, app.Templates, engine, app.Adapter, app.Events)
	app.Documents = service.NewDocumentService(docStore, app.Adapter, access.NewSigner(cfg.TokenSecret))
	app.Lifecycle = job.NewLifecycle(docStore, app.Adapter, mirror, job.Policy{
		ArchiveAfter: cfg.Lifecycle.ArchiveAfter,
		DeleteAfter:  cfg.Lifecycle.DeleteAfter,
		PreviewTTL:   cfg.Preview.TTL,
		BatchSize:    cfg.Lifecycle.BatchSize,
	})

	return app, nil
}

// Close flushes the event queue and drops the redis connection.
func (a *App) Close() {
	a.Events.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logrus.Warnf("error closing redis: %v", err)
		}
	}
}

func newBucket(ctx context.Context, cfg config.Storage) (storage.Bucket, error) {
	switch cfg.Kind {
	case "memory":
		logrus.Warn("documents are stored in memory and lost on restart")
		return storage.NewMemoryBucket(), nil
	case "fs":
		return storage.NewFSBucket(cfg.Root)
	case "s3":
		return storage.NewS3Bucket(ctx, storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			PathStyle: cfg.S3.PathStyle,
		})
	}

	return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
}

func (a *App) newMirror(bucket storage.Bucket) (cache.Mirror, error) {
	cfg := a.Config
	codec, err := compress.ByName(cfg.Preview.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Preview.Mirror {
	case "blob":
		return cache.NewBlobMirror(bucket, codec), nil
	case "redis":
		a.redis = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return cache.NewRedisMirror(a.redis, codec, cfg.Preview.TTL), nil
	}

	return nil, nil
}
