// Package bootstrap wires the configured backends into a ready Service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docqa/internal/config"
	"docqa/internal/database/kafka"
	"docqa/internal/database/milvus"
	"docqa/internal/database/minio"
	"docqa/internal/database/mongo"
	"docqa/internal/database/redis"
	"docqa/internal/docqa/api"
	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/loaders"
	"docqa/internal/docqa/pipeline"
	"docqa/internal/docqa/service"
	"docqa/internal/docqa/splitters"
	"docqa/internal/docqa/storages/cache"
	"docqa/internal/docqa/storages/metastore"
	"docqa/internal/docqa/storages/objectstore"
	"docqa/internal/docqa/storages/vectorstore"
	"docqa/internal/embedding"
	"docqa/internal/llm"
	httpclient "docqa/pkg/http"
	"docqa/pkg/logger"
)

// App holds the wired service plus everything needed to probe and release its backends.
type App struct {
	Service *service.Service
	Checks  map[string]api.HealthChecker

	closers []func(context.Context) error
	log     *logger.Logger
}

// Close releases backends in reverse order of construction and joins their errors.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) onClose(f func(context.Context) error) {
	a.closers = append(a.closers, f)
}

// Build connects every configured backend and assembles the pipelines. On failure
// anything already opened is closed again.
func Build(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (_ *App, err error) {
	app := &App{Checks: map[string]api.HealthChecker{}, log: log}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	// 1. Stores
	records, questions, err := app.metadataStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	objects, err := app.objectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	vectors, err := app.vectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Models
	hc, err := httpclient.NewClient(cfg.Middleware.CircuitBreaker, config.Duration(cfg.Server.RequestTimeout, 120*time.Second))
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	emd, err := embedding.NewEmdModel(ctx, cfg.Embedding, hc)
	if err != nil {
		return nil, fmt.Errorf("create embedding model: %w", err)
	}
	embedder := embedding.NewBatchEmbedder(emd, cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)
	generator, err := llm.NewClient(ctx, cfg.LLM, llm.Options{MaxNewTokens: cfg.Answering.MaxNewTokens}, hc)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	// 3. Pipelines
	ing := cfg.Ingestion
	splitter, err := splitters.New(ing.Splitter, ing.ChunkSize, ing.ChunkOverlap, ing.Encoding)
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	ingestion := pipeline.NewIngestionPipeline(
		loaders.NewPdfLoader(), splitter, embedder, objects, records, questions, vectors, log,
		pipeline.WithSplitterFactory(splitterFactory(ing)),
		pipeline.WithCompensation(cfg.CompensateEnabled()),
	)
	retrieval := pipeline.NewRetrievalPipeline(embedder, vectors, cfg.Answering.TopK, log)
	qa := pipeline.NewQAPipeline(retrieval, generator, cfg.Answering.PromptTemplate, log)
	manager := pipeline.NewDocumentManager(records, vectors, log)

	// 4. Cache and events
	answers, err := app.answerCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	events := app.eventPublisher(cfg)

	app.Service = service.New(ingestion, qa, manager, questions, answers, events, cfg.Answering.TopK, log)
	app.onClose(func(context.Context) error { return app.Service.Close() })

	if cfg.VectorIndex.ResetOnStartup {
		res, err := app.Service.ResetIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("reset index on startup: %w", err)
		}
		log.Warn(fmt.Sprintf("Index reset on startup: %d records, %d chunks removed", res.Records, res.Chunks))
	}
	return app, nil
}

// splitterFactory builds per-upload splitters with the configured strategy. An unset
// overlap keeps the default ratio of one fifth of the chunk size.
func splitterFactory(ing config.IngestionConfig) pipeline.SplitterFactory {
	return func(size, overlap int) (interfaces.Splitter, error) {
		if overlap == pipeline.DefaultOverlap {
			overlap = size / 5
		}
		return splitters.New(ing.Splitter, size, overlap, ing.Encoding)
	}
}

func (a *App) metadataStores(ctx context.Context, cfg *config.AppConfig) (interfaces.MetadataStore, interfaces.QuestionStore, error) {
	if cfg.MetadataStore.Backend == "memory" {
		a.log.Warn("Using in-memory metadata store; records are lost on restart")
		return metastore.NewMemoryStore(), metastore.NewMemoryQuestionStore(), nil
	}

	mcfg := cfg.MetadataStore.MongoDB
	client, err := mongo.NewClient(ctx, mcfg, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(client.Close)
	a.Checks["mongo"] = client.HealthCheck
	return metastore.NewMongoStore(client.Database(), mcfg.FilesCollection),
		metastore.NewMongoQuestionStore(client.Database(), mcfg.QuestionsCollection), nil
}

func (a *App) objectStore(ctx context.Context, cfg *config.AppConfig) (interfaces.ObjectStore, error) {
	if cfg.ObjectStore.Backend == "memory" {
		a.log.Warn("Using in-memory object store; uploaded files are lost on restart")
		return objectstore.NewMemoryStore(), nil
	}

	client, err := minio.NewClient(ctx, cfg.ObjectStore.MinIO, a.log)
	if err != nil {
		return nil, err
	}
	a.Checks["minio"] = client.HealthCheck
	return objectstore.NewMinIOStore(client, client.Bucket, client.Endpoint, client.Secure), nil
}

func (a *App) vectorStore(ctx context.Context, cfg *config.AppConfig) (interfaces.VectorStore, error) {
	switch cfg.VectorIndex.Backend {
	case "memory":
		a.log.Warn("Using in-memory vector index; chunks are lost on restart")
		return vectorstore.NewMemoryStore(), nil
	case "milvus":
		client, err := milvus.NewClient(ctx, cfg.VectorIndex.Milvus, a.log)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { client.Close(); return nil })
		a.Checks["milvus"] = client.HealthCheck
		return vectorstore.NewMilvusStore(ctx, client, a.log)
	default:
		ccfg := cfg.VectorIndex.Chromem
		store, err := vectorstore.NewChromemStore(ccfg.PersistDir, ccfg.Collection, ccfg.Compress)
		if err != nil {
			return nil, err
		}
		a.log.Info(fmt.Sprintf("Vector index: chromem collection %q at %q", ccfg.Collection, ccfg.PersistDir))
		return store, nil
	}
}

func (a *App) answerCache(ctx context.Context, cfg *config.AppConfig) (interfaces.AnswerCache, error) {
	if !cfg.Cache.Enabled {
		return cache.Nop{}, nil
	}
	ttl := config.Duration(cfg.Cache.TTL, 10*time.Minute)
	if cfg.Cache.Backend == "memory" {
		return cache.NewMemoryAnswerCache(cfg.Cache.Capacity, ttl)
	}

	rdb, err := redis.NewClient(ctx, cfg.Cache.Redis, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return rdb.Close() })
	a.Checks["redis"] = func(ctx context.Context) error { return redis.HealthCheck(ctx, rdb) }
	return cache.NewRedisAnswerCache(rdb, cfg.Cache.Prefix, ttl), nil
}

func (a *App) eventPublisher(cfg *config.AppConfig) interfaces.EventPublisher {
	if !cfg.Events.Enabled {
		return kafka.NopPublisher{}
	}
	kcfg := cfg.Events.Kafka
	if err := kafka.EnsureTopic(kcfg, a.log); err != nil {
		// Publishing still works if the broker auto-creates topics.
		a.log.WithError(err).Warn("Failed to ensure Kafka topic")
	}
	a.Checks["kafka"] = func(ctx context.Context) error { return kafka.HealthCheck(ctx, kcfg.Brokers) }
	return kafka.NewEventPublisher(kcfg, a.log)
}
