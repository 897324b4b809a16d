package main

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/internal/database/kafka"
	"FactVerse/backend/go/internal/database/mongo"
	"FactVerse/backend/go/internal/database/mysql"
	"FactVerse/backend/go/internal/database/redis"
	"FactVerse/backend/go/internal/fact_service/api"
	"FactVerse/backend/go/internal/fact_service/consumer"
	"FactVerse/backend/go/internal/fact_service/generator"
	"FactVerse/backend/go/internal/fact_service/metrics"
	"FactVerse/backend/go/internal/fact_service/publisher"
	"FactVerse/backend/go/internal/fact_service/realtime"
	"FactVerse/backend/go/internal/fact_service/service"
	"FactVerse/backend/go/internal/fact_service/store"
	"FactVerse/backend/go/internal/llm"
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/circuitbreaker"
	pkghttp "FactVerse/backend/go/pkg/http"
	"FactVerse/backend/go/pkg/logger"
	"FactVerse/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "backend/go/internal/config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("FactService")
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factStore, closeStore := openStore(ctx, cfg, serviceLogger)
	defer closeStore()

	var rdb *goredis.Client
	if cfg.Generation.Quota.Store == "redis" {
		rdb, err = redis.Connect(ctx, &cfg.Databases.Redis, serviceLogger)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfoFrom(err, "redis_error")).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	m := metrics.New()
	selector, closeLLMs := buildSelector(ctx, cfg, rdb, m, serviceLogger)
	defer closeLLMs()

	// Events and realtime fan-out
	instance := instanceID()
	hub := realtime.NewHub(cfg.Server.ClientURL, serviceLogger.WithComponent("realtime"))
	var eventPublisher publisher.EventPublisher = publisher.NopPublisher{}
	var relay *consumer.Relay
	if kcfg := &cfg.Databases.Kafka; len(kcfg.Brokers) > 0 {
		topic := cfg.Generation.Events.Topic
		if err := kafka.EnsureTopics(kcfg, serviceLogger, topic); err != nil {
			serviceLogger.WithError(models.ErrorInfoFrom(err, "kafka_error")).Warn("Failed to ensure Kafka topics")
		}
		eventPublisher = publisher.NewKafkaPublisher(kafka.NewWriter(kcfg, topic), instance, serviceLogger.WithComponent("publisher"))
		if cfg.Generation.Events.Relay {
			relay = consumer.NewRelay(kcfg.Brokers, topic, instance, serviceLogger.WithComponent("relay"))
			relay.Start(ctx, hub)
			serviceLogger.Info("Kafka fact event relay started")
		}
	}

	factService := service.NewFactService(selector, factStore, eventPublisher, hub, m, service.Options{
		BatchWidth:     cfg.Generation.BatchWidth,
		BatchDelay:     config.MustDuration(cfg.Generation.BatchDelay, service.DefaultBatchDelay),
		MaxBatch:       cfg.Generation.MaxBatch,
		PersistTimeout: config.MustDuration(cfg.Generation.PersistTimeout, service.DefaultPersistTimeout),
	}, serviceLogger)

	// Setup HTTP server
	apiHandler := api.NewAPI(factService, cfg.App.Environment, serviceLogger.WithComponent("api"))
	router := api.SetupRouter(apiHandler, api.RouterConfig{
		ClientURL: cfg.Server.ClientURL,
		RateLimit: cfg.Middleware.RateLimiter,
		Metrics:   m,
		WebSocket: hub.ServeWS,
	}, serviceLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		serviceLogger.WithPayload(map[string]interface{}{
			"environment": cfg.App.Environment,
			"instance":    instance,
		}).Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfoFrom(err, "server_error")).Fatal("HTTP server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.MustDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfoFrom(err, "server_error")).Error("Server forced to shutdown")
	}
	hub.Close()

	// Background persistence still holds facts the clients have already seen.
	waited := make(chan struct{})
	go func() {
		factService.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-shutdownCtx.Done():
		serviceLogger.Warn("Timed out waiting for pending fact writes")
	}

	cancel()
	if relay != nil {
		if err := relay.Close(); err != nil {
			serviceLogger.WithError(models.ErrorInfoFrom(err, "kafka_error")).Error("Error closing Kafka relay")
		}
		<-relay.Done()
	}
	if err := eventPublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfoFrom(err, "kafka_error")).Error("Error closing Kafka publisher")
	}

	serviceLogger.Info("Server gracefully stopped")
}

// openStore connects the configured database and returns the fact store with
// its cleanup function.
func openStore(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (store.FactStore, func()) {
	switch cfg.Databases.Driver {
	case "mongodb":
		client, err := mongo.Connect(ctx, &cfg.Databases.MongoDB, log)
		if err != nil {
			log.WithError(models.ErrorInfoFrom(err, "database_error")).Fatal("Failed to connect to MongoDB")
		}
		st := store.NewMongoFactStore(client.Database(cfg.Databases.MongoDB.Database))
		if err := st.EnsureIndexes(ctx); err != nil {
			log.WithError(models.ErrorInfoFrom(err, "database_error")).Warn("Failed to create MongoDB indexes")
		}
		return st, func() {
			if err := mongo.Close(context.Background(), client); err != nil {
				log.WithError(models.ErrorInfoFrom(err, "database_error")).Error("Error disconnecting from MongoDB")
			}
		}
	default:
		db, err := mysql.Open(ctx, &cfg.Databases.MySQL, log)
		if err != nil {
			log.WithError(models.ErrorInfoFrom(err, "database_error")).Fatal("Failed to connect to MySQL")
		}
		st, err := store.NewGormFactStore(db)
		if err != nil {
			log.WithError(models.ErrorInfoFrom(err, "database_error")).Fatal("Database migration failed")
		}
		log.Info("Database migration completed")
		return st, func() {
			if err := mysql.Close(db); err != nil {
				log.WithError(models.ErrorInfoFrom(err, "database_error")).Error("Error closing MySQL")
			}
		}
	}
}

// buildSelector wires the curated dataset, the cache and whichever remote
// backends have credentials. The returned func closes the LLM clients.
func buildSelector(ctx context.Context, cfg *config.AppConfig, rdb *goredis.Client, m *metrics.Metrics, log *logger.Logger) (*generator.Selector, func()) {
	gen := cfg.Generation
	timeout := config.MustDuration(gen.Timeout, generator.DefaultTimeout)

	hc, err := pkghttp.NewClient(cfg.Middleware.CircuitBreaker, timeout)
	if err != nil {
		log.WithError(models.ErrorInfoFrom(err, "config_error")).Fatal("Failed to create HTTP client")
	}

	dataset, err := generator.LoadDataset(gen.CuratedPath)
	if err != nil {
		log.WithError(models.ErrorInfoFrom(err, "config_error")).Fatal("Failed to load curated facts")
	}

	window := config.MustDuration(gen.Quota.Window, 24*time.Hour)
	var clients []llm.LLM
	remote := func(pc config.ProviderConfig, slot generator.Slot, limit int) generator.Remote {
		if pc.Provider == "" {
			return nil
		}
		client, err := llm.NewClient(ctx, pc, hc)
		if errors.Is(err, llm.ErrMissingAPIKey) {
			log.WithPayload(map[string]interface{}{"provider": pc.Provider}).Warn("API key not configured, backend disabled")
			return nil
		}
		if err != nil {
			log.WithError(models.ErrorInfoFrom(err, "provider_error")).Fatal("Failed to create LLM client")
		}
		clients = append(clients, client)

		var quota ratelimiter.Quota = ratelimiter.NewFixedWindowCounter(limit, window)
		if rdb != nil {
			quota = ratelimiter.NewRedisWindowCounter(rdb, "factverse:quota:"+pc.Provider, limit, window)
		}

		opts := []generator.RemoteOption{
			generator.WithTimeout(timeout),
			generator.WithLogger(log.WithComponent(pc.Provider)),
		}
		// Hugging Face goes through hc, which already carries a breaker.
		if cb := cfg.Middleware.CircuitBreaker; cb.Enabled && pc.Provider != "huggingface" {
			opts = append(opts, generator.WithBreaker(circuitbreaker.New(
				cb.FailureThreshold, cb.SuccessThreshold, config.MustDuration(cb.Timeout, time.Minute),
				circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
					log.WithPayload(map[string]interface{}{
						"provider": pc.Provider,
						"from":     from.String(),
						"to":       to.String(),
					}).Warn("Circuit breaker state changed")
				}),
			)))
		}
		backend, err := generator.NewRemoteBackend(pc.Provider, slot, client, quota, opts...)
		if err != nil {
			log.WithError(models.ErrorInfoFrom(err, "provider_error")).Fatal("Failed to create remote backend")
		}
		log.WithPayload(map[string]interface{}{"provider": pc.Provider, "quota": limit}).Info("Remote backend enabled")
		return backend
	}

	selector, err := generator.NewSelector(generator.Options{
		Primary:   remote(gen.Primary, generator.SlotPrimary, gen.Quota.Primary),
		Secondary: remote(gen.Secondary, generator.SlotSecondary, gen.Quota.Secondary),
		Curated:   generator.NewCuratedBackend(dataset, nil, nil),
		Cache:     generator.NewFactCache(config.MustDuration(gen.CacheTTL, generator.DefaultCacheTTL), gen.CacheCapacity, nil),
		Roller:    generator.NewRandRoller(0),
		Observer:  m,
		Logger:    log.WithComponent("generator"),
	})
	if err != nil {
		log.WithError(models.ErrorInfoFrom(err, "config_error")).Fatal("Failed to create fact selector")
	}
	return selector, func() {
		for _, c := range clients {
			if err := llm.Close(c); err != nil {
				log.WithError(models.ErrorInfoFrom(err, "provider_error")).Warn("Failed to close LLM client")
			}
		}
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "factverse"
	}
	return host + "-" + uuid.NewString()[:8]
}
