package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"genfity-floor-services/internal/config"
	"genfity-floor-services/internal/db"
	httpapi "genfity-floor-services/internal/http"
	"genfity-floor-services/internal/http/handlers"
	"genfity-floor-services/internal/guard"
	"genfity-floor-services/internal/location"
	"genfity-floor-services/internal/logger"
	"genfity-floor-services/internal/mqttbridge"
	"genfity-floor-services/internal/orderwatch"
	"genfity-floor-services/internal/queue"
	"genfity-floor-services/internal/settings"
	ordersignal "genfity-floor-services/internal/signal"
	"genfity-floor-services/internal/ws"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
	} else {
		log.Info("database disabled (DATABASE_URL is empty); order streams unavailable")
	}

	store, closeStore, err := openSettings(ctx, cfg, pool)
	if err != nil {
		log.Fatal("settings store failed", zap.String("driver", cfg.SettingsDriver), zap.Error(err))
	}
	defer closeStore()
	log.Info("settings store ready", zap.String("driver", cfg.SettingsDriver))

	bus := ordersignal.NewBus()
	var broadcaster ordersignal.Broadcaster = bus

	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("redis connection failed", zap.Error(err))
			}
			log.Warn("redis connection failed; continuing without cache and relay", zap.Error(err))
		} else {
			defer rdb.Close()
			store = &settings.CachedStore{Store: store, Redis: rdb, TTL: cfg.SettingsCacheTTL, Logger: log}
			relay := ordersignal.NewRedisRelay(rdb, bus, log)
			broadcaster = relay
			go func() {
				if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("order signal relay stopped", zap.Error(err))
				}
			}()
			log.Info("redis enabled", zap.String("relayOrigin", relay.Origin()))
		}
	}

	var orders orderwatch.Source
	if pool != nil {
		orders = &orderwatch.PostgresSource{DB: pool}
		listener := &ordersignal.PGListener{DB: pool, Bus: bus, Logger: log}
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("orders listener stopped", zap.Error(err))
			}
		}()
	}

	registry := location.NewRegistry()
	// A fix older than the watch max age is never served, so idle feeds go after one window.
	go registry.RunJanitor(ctx, cfg.LocationWatchMaxAge, cfg.LocationWatchMaxAge)
	sessions := guard.NewSessions()

	if cfg.MQTTBrokerURL != "" {
		bridge, err := mqttbridge.New(mqttbridge.Config{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, registry, log)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("mqtt connection failed", zap.Error(err))
			}
			log.Warn("mqtt connection failed; devices must report over http or ws", zap.Error(err))
		} else {
			defer bridge.Close()
			log.Info("mqtt bridge enabled", zap.String("topicPrefix", cfg.MQTTTopicPrefix))
		}
	}

	wsServer := &ws.Server{
		Logger:   log,
		Config:   cfg,
		Settings: store,
		Registry: registry,
		Sessions: sessions,
		Bus:      bus,
		Orders:   orders,
	}

	if cfg.RabbitMQURL != "" {
		qc := openQueue(cfg, log)
		if qc != nil {
			defer qc.Close()
			wsServer.Events = qc
			if cfg.RabbitMQWorkerMode == "daemon" {
				log.Info("order event consumer enabled", zap.String("queue", queue.FloorOrdersQueue))
				go func() {
					err := qc.ConsumeWithRetry(ctx, queue.FloorOrdersQueue, queue.OrderCreatedHandler(broadcaster), 5, 5*time.Second)
					if err != nil && !errors.Is(err, context.Canceled) {
						log.Error("consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("order event consumer disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("domain events disabled (RABBITMQ_URL is empty)")
	}

	h := &handlers.Handler{
		Logger:   log,
		Config:   cfg,
		Settings: store,
		Registry: registry,
		Sessions: sessions,
		Signals:  broadcaster,
	}
	apiServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     httpapi.NewRouter(log, cfg, h, wsServer),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("floor api ready", zap.String("base", "/api"))
		log.Info("floor ws ready", zap.String("base", "/ws"))
		log.Info("floor service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

func openSettings(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (settings.Store, func(), error) {
	defaults := settings.Defaults{RadiusMeters: cfg.GeofenceDefaultRadius}
	switch cfg.SettingsDriver {
	case "postgres":
		if pool == nil {
			return nil, nil, errors.New("postgres settings driver requires DATABASE_URL")
		}
		store := &settings.PostgresStore{DB: pool, Defaults: defaults}
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "sqlite":
		store, err := settings.OpenSQLite(ctx, cfg.SQLitePath, defaults)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "memory":
		return settings.NewMemoryStore(defaults), func() {}, nil
	default:
		return nil, nil, errors.New("unknown settings driver " + cfg.SettingsDriver)
	}
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// openQueue connects and declares the floor topology. Outside production a
// broker failure only disables domain events.
func openQueue(cfg config.Config, log *zap.Logger) *queue.Client {
	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
		return nil
	}
	if err := queue.EnsureFloorTopology(qc); err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq topology failed", zap.Error(err))
		}
		log.Warn("rabbitmq topology failed; continuing without events", zap.Error(err))
		_ = qc.Close()
		return nil
	}
	return qc
}
