package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sabore-analytics/internal/cache"
	"sabore-analytics/internal/config"
	"sabore-analytics/internal/db"
	httpapi "sabore-analytics/internal/http"
	"sabore-analytics/internal/logger"
	"sabore-analytics/internal/orders"
	"sabore-analytics/internal/queue"
	"sabore-analytics/internal/reports"
	"sabore-analytics/internal/storage"
	"sabore-analytics/internal/utils"
	"sabore-analytics/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// failSoft stops the service in production and degrades elsewhere.
	failSoft := func(msg string, err error) {
		if cfg.IsProduction() {
			log.Fatal(msg, zap.Error(err))
		}
		log.Warn(msg+"; continuing without it", zap.Error(err))
	}

	var source orders.Source
	switch cfg.OrderSource {
	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		source = orders.NewPostgresSource(pool, log)
	default:
		if cfg.APIBaseURL == "" {
			log.Warn("order source disabled (API_BASE_URL is empty); only uploads can be analyzed")
		} else {
			source = orders.NewBackendSource(cfg.APIBaseURL, cfg.APITimeout, log)
		}
	}
	if source != nil {
		log.Info("order source ready", zap.String("source", source.Name()))
	}

	var store cache.Store = cache.NewMemory()
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			failSoft("redis connection failed", err)
		} else {
			store = redisStore
			log.Info("report cache using redis")
		}
	}
	defer store.Close()

	service := reports.NewService(source, store, log, reports.Options{
		Location:      utils.LoadLocation(cfg.ReportTimezone),
		CacheTTL:      cfg.ReportCacheTTL,
		Currency:      cfg.ReportCurrency,
		Exchange:      queue.AnalyticsExchange,
		ArchivePrefix: cfg.ReportArchivePrefix,
	})

	if cfg.ObjectStoreEnabled() {
		archive, err := storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			failSoft("object store init failed", err)
		} else {
			service.Archive = archive
			log.Info("report archive enabled", zap.String("bucket", cfg.ObjectStoreBucket))
		}
	}

	refresher, err := reports.NewRefresher(service, cfg.RefreshRestaurants, cfg.RefreshInterval, log)
	if err != nil {
		log.Fatal("invalid refresher config", zap.Error(err))
	}

	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			failSoft("rabbitmq connection failed", err)
			qc = nil
		}
		if qc != nil {
			if err := queue.EnsureAnalyticsTopology(qc); err != nil {
				failSoft("rabbitmq analytics topology failed", err)
				_ = qc.Close()
				qc = nil
			}
		}
		if qc != nil {
			defer qc.Close()
			service.Publisher = qc
			log.Info("rabbitmq enabled", zap.String("exchange", queue.AnalyticsExchange))

			if cfg.RabbitMQWorkerMode == "daemon" {
				log.Info("refresh consumer enabled", zap.String("queue", queue.RefreshQueue))
				go func() {
					policy := queue.RetryPolicy{MaxRetries: 5, Delay: 5 * time.Second}
					err := qc.ConsumeWithRetry(ctx, queue.RefreshQueue, refresher.HandleMessage, policy, log)
					if err != nil && ctx.Err() == nil {
						log.Error("refresh consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("refresh consumer disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("report events disabled (RABBITMQ_URL is empty)")
	}

	wsServer := ws.New(service, log, cfg.WSHeartbeatInterval, cfg.CorsAllowedOrigins)
	service.Broadcaster = wsServer

	if cfg.RefreshInterval > 0 {
		go refresher.Run(ctx)
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(service, log, cfg, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("reports api ready", zap.String("base", "/api/reports"))
		log.Info("reports ws ready", zap.String("base", "/ws/reports"))
		log.Info("analytics service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopWorkers()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
