package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/config"
	"github.com/Haru65/subtronic-backend/internal/consumer"
	"github.com/Haru65/subtronic-backend/internal/database"
	"github.com/Haru65/subtronic-backend/internal/evaluator"
	"github.com/Haru65/subtronic-backend/internal/httpapi"
	"github.com/Haru65/subtronic-backend/internal/hub"
	"github.com/Haru65/subtronic-backend/internal/mqtt"
	"github.com/Haru65/subtronic-backend/internal/notifier"
	"github.com/Haru65/subtronic-backend/internal/repository"
	"github.com/Haru65/subtronic-backend/internal/sink"
	"github.com/Haru65/subtronic-backend/internal/store"
	"github.com/Haru65/subtronic-backend/internal/timeseries"
)

// Gateway assembles and runs the whole pipeline: MQTT consumer, device
// store, fan-out hub, alarm log sink and the HTTP surface.
type Gateway struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *goredis.Client
	mqttClient  *mqtt.Client
	deviceStore *store.DeviceStore
	fanout      *hub.Hub
	alarmSink   *sink.AlarmLogSink
	history     *timeseries.InfluxWriter
	mqttConsume *consumer.MQTTConsumer
	httpServer  *Server
}

// NewGateway wires every component. The database and Redis are optional at
// startup: when either is unreachable the gateway logs the degradation and
// runs on its in-process fallbacks.
func NewGateway(cfg *config.Config, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{
		config: cfg,
		logger: logger,
	}

	// Durable alarm log, fallback-first if the database is down.
	var alarmRepo *repository.AlarmLogRepository
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Warn("Alarm log database unavailable, starting in memory-only mode", zap.Error(err))
	} else {
		g.db = db
		alarmRepo = repository.NewAlarmLogRepository(db, logger)
	}
	g.alarmSink = sink.NewAlarmLogSink(alarmRepo, repository.NewMemoryAlarmLog(cfg.AlarmLog.MemoryCap), logger)

	// Optional Redis snapshot mirror for the device cache.
	var kv store.KV
	if cfg.Redis.Enabled() {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, running without snapshot mirror", zap.Error(err))
			client.Close()
		} else {
			g.redisClient = client
			kv = store.NewRedisKV(client)
		}
	}

	g.deviceStore = store.NewDeviceStore(kv, logger)
	if kv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := g.deviceStore.WarmStart(ctx); err != nil {
			logger.Warn("Device cache warm start failed", zap.Error(err))
		}
		cancel()
	}

	g.fanout = hub.NewHub(g.deviceStore.Get, logger)

	if cfg.Influx.Enabled() {
		g.history = timeseries.NewInfluxWriter(&cfg.Influx, logger)
	}

	var alertNotifier consumer.Notifier
	if cfg.Webhook.Enabled() {
		alertNotifier = notifier.NewWebhookNotifier(&cfg.Webhook, logger)
	}

	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.mqttClient = mqttClient

	var history consumer.HistoryWriter
	if g.history != nil {
		history = g.history
	}
	g.mqttConsume = consumer.NewMQTTConsumer(
		cfg,
		mqttClient,
		g.deviceStore,
		evaluator.NewEvaluator(logger),
		g.fanout,
		g.alarmSink,
		history,
		alertNotifier,
		logger,
	)

	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(
		httpapi.NewDeviceHandler(g.deviceStore, g.alarmSink, g.history, logger),
		httpapi.NewAlarmLogHandler(g.alarmSink, logger),
		httpapi.NewWSHandler(g.fanout, logger),
		httpapi.NewHealthHandler(mqttClient, g.alarmSink),
	)

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	g.httpServer = NewServer(cfg.Service.HTTPAddr, corsWrapper.Handler(router), logger)

	return g, nil
}

// Start runs the HTTP server and the MQTT consumer until the context is
// canceled or either fails.
func (g *Gateway) Start(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		if err := g.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	go func() {
		if err := g.mqttConsume.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// Stop shuts the gateway down in reverse dependency order.
func (g *Gateway) Stop() {
	if g.mqttConsume != nil {
		g.mqttConsume.Stop()
	}
	if g.mqttClient != nil {
		g.mqttClient.Disconnect()
	}
	if g.fanout != nil {
		g.fanout.Close()
	}
	if g.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := g.httpServer.Stop(ctx); err != nil {
			g.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	g.Close()
}

// Close releases the external connections.
func (g *Gateway) Close() {
	if g.history != nil {
		g.history.Close()
		g.history = nil
	}
	if g.redisClient != nil {
		g.redisClient.Close()
		g.redisClient = nil
	}
	if g.db != nil {
		database.Close(g.db)
		g.db = nil
	}
}
