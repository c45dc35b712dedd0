package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/timegrid/libs/config"
	"github.com/md-rashed-zaman/timegrid/libs/db"
	"github.com/md-rashed-zaman/timegrid/libs/httpx"
	"github.com/md-rashed-zaman/timegrid/libs/kafkax"
	otelx "github.com/md-rashed-zaman/timegrid/libs/otel"
	"github.com/md-rashed-zaman/timegrid/libs/runtime"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/catalog"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/consumer"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/inbox"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/precompute"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/resolver"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/rules"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository()

	// Cache backend: Redis when configured (shared across replicas),
	// in-process otherwise.
	var availCache cache.Cache
	var rdb *redis.Client
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		availCache = cache.NewRedis(rdb, config.String("CACHE_PREFIX", "avail"))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("availability cache backend: redis", "addr", addr)
	} else {
		availCache = cache.NewMemory(config.Int("CACHE_MAX_ENTRIES", 1024))
		logger.Info("availability cache backend: in-memory")
	}

	// Event type catalog: gRPC client in protogen builds when an address is
	// configured, shared database otherwise.
	var cat catalog.Provider
	if grpcCat, err := catalog.NewGRPCProvider(config.String("CATALOG_GRPC_ADDR", "")); err != nil {
		logger.Error("catalog grpc init failed; using db provider", "err", err)
	} else if grpcCat != nil {
		cat = grpcCat
	}
	if cat == nil {
		cat = catalog.NewDBProvider(pool)
	}

	stats := &cache.Stats{}
	cachedResolver := resolver.NewCached(resolver.NewResolver(repo, cat), availCache, stats,
		config.Minutes("CACHE_TTL_MINUTES", 5), logger)

	rulesService := rules.NewService(pool, repo, outboxRepo, availCache, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if strings.TrimSpace(brokers) != "" {
		syncConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "availability-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", consumer.CalendarSyncTopic),
		}, consumer.CalendarSyncHandler(rulesService, logger))
		go syncConsumer.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	warmer := precompute.NewWarmer(repo, cat, cachedResolver, logger, precompute.Config{
		Interval:    config.Minutes("PRECOMPUTE_INTERVAL_MINUTES", 10),
		HorizonDays: config.Int("PRECOMPUTE_HORIZON_DAYS", 14),
	})
	go warmer.Run(ctx)

	jwtSecret := config.String("AUTH_JWT_SECRET", "")
	rulesHandler := handlers.NewRulesHandler(rulesService, logger, jwtSecret)
	slotsHandler := handlers.NewSlotsHandler(cachedResolver, logger, config.Int("SLOTS_MAX_RANGE_DAYS", 31))
	diagHandler := handlers.NewDiagnosticsHandler(cachedResolver)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/rules/weekly", rulesHandler.Weekly)
	mux.HandleFunc("/api/v1/rules/overrides", rulesHandler.Overrides)
	mux.HandleFunc("/api/v1/rules/recurring-blocks", rulesHandler.RecurringBlocks)
	mux.HandleFunc("/api/v1/rules/blocked-times", rulesHandler.BlockedTimes)
	mux.HandleFunc("/api/v1/rules/buffer-policy", rulesHandler.BufferPolicy)
	mux.HandleFunc("/api/v1/rules/check-conflict", rulesHandler.CheckConflict)
	mux.HandleFunc("/api/v1/diagnostics/timezone", diagHandler.Timezone)
	mux.HandleFunc("/api/v1/diagnostics/cache", diagHandler.CacheStats)

	// The public slots endpoint is unauthenticated, so it gets its own rate
	// limit when Redis is available.
	var slotsRoute http.Handler = http.HandlerFunc(slotsHandler.Slots)
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute,
			config.String("RATE_LIMIT_PREFIX", "avail-rl"))
		slotsRoute = rl.Middleware(logger, true)(slotsRoute)
	}
	mux.Handle("/api/v1/public/slots", slotsRoute)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,X-Organizer-Id")),
			MaxAge:         config.Minutes("CORS_MAX_AGE_MINUTES", 10),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
