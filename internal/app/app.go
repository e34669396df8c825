package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"kimchi-signal/internal/anomaly"
	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/cache"
	"kimchi-signal/internal/config"
	"kimchi-signal/internal/db"
	"kimchi-signal/internal/provider"
	"kimchi-signal/internal/repository"
	"kimchi-signal/internal/service"
	signalengine "kimchi-signal/internal/signal"
	"kimchi-signal/internal/strategy"

	"go.opentelemetry.io/otel/trace"
)

// Overridable for tests.
var (
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	openSQLiteFunc   = repository.OpenSQLiteBlobStore
)

// App holds the services shared by every entrypoint.
type App struct {
	Store    *repository.SeriesRepository
	Pipeline *service.PipelineService
	Strategy *service.StrategyService
	Monitor  *service.MonitorService
	Optimize *service.OptimizeService
	Anomaly  *service.AnomalyService

	closers []func()
}

// Build opens the configured store and wires the services on top of it. Callers
// must Close the returned App.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (*App, error) {
	blobs, closers, err := openBlobStore(ctx, cfg, tracer)
	if err != nil {
		return nil, err
	}
	a := &App{closers: closers}

	engine, err := signalengine.NewEngine(cfg.Signal)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("threshold engine: %w", err)
	}

	a.Store = repository.NewSeriesRepository(blobs, tracer)

	upbitURL := orDefault(cfg.UpbitBaseURL, provider.DefaultUpbitBaseURL)
	sources := service.PipelineSources{
		Rate:    provider.NewNaverFX(orDefault(cfg.NaverFXURL, provider.DefaultNaverFXURL)),
		USDT:    provider.NewUpbitCandles(upbitURL, provider.MarketKRWUSDT),
		BTCKRW:  provider.NewUpbitCandles(upbitURL, provider.MarketKRWBTC),
		BTCUSDT: provider.NewBybitKline(orDefault(cfg.BybitBaseURL, provider.DefaultBybitBaseURL), provider.SymbolBTCUSDT),
	}
	a.Pipeline = service.NewPipelineService(tracer, a.Store, sources, engine, time.Now)

	var builder service.StrategyBuilder
	if cfg.OpenAIAPIKey != "" {
		builder = strategy.NewBuilder(strategy.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), time.Now)
	}
	a.Strategy = service.NewStrategyService(tracer, a.Store, builder, cfg.PromptHistoryDays, time.Now)

	var price service.PriceSource = provider.NewUpbitTicker(upbitURL, provider.MarketKRWUSDT)
	if cfg.UpbitStreamEnabled {
		stream := provider.NewUpbitStream(cfg.UpbitStreamURL, provider.MarketKRWUSDT, price)
		streamCtx, stop := context.WithCancel(ctx)
		go stream.Run(streamCtx)
		a.closers = append(a.closers, stop)
		price = stream
	}
	a.Monitor = service.NewMonitorService(tracer, a.Store, price)
	a.Optimize = service.NewOptimizeService(tracer, a.Store, cfg.Signal, backtest.Options{
		MaxCombinations: cfg.OptimizeMaxCombinations,
		TopN:            cfg.OptimizeTopN,
		Workers:         cfg.OptimizeWorkers,
	})
	a.Anomaly = service.NewAnomalyService(tracer, a.Store, anomaly.Options{
		NumTrees:  cfg.AnomalyTrees,
		Threshold: cfg.AnomalyThreshold,
	})
	return a, nil
}

// Close releases store connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (repository.BlobStore, []func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Println("using in-memory store; data is lost on exit")
		return repository.NewMemoryBlobStore(), nil, nil

	case config.StoreRedis:
		client, err := initRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisBlobStore(client, cfg.RedisKeyPrefix), []func(){func() { client.Close() }}, nil

	case config.StorePostgres:
		pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if pool == nil {
			return nil, nil, fmt.Errorf("postgres store requires DATABASE_URL")
		}
		store := repository.NewPostgresBlobStore(pool, tracer)
		if err := store.RunMigrations(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return store, []func(){pool.Close}, nil

	case config.StoreSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, nil, fmt.Errorf("supabase store requires SUPABASE_URL and SUPABASE_KEY")
		}
		return repository.NewSupabaseBlobStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket), nil, nil

	case config.StoreSQLite, "":
		store, err := openSQLiteFunc(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, []func(){func() { store.Close() }}, nil
	}
	return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
