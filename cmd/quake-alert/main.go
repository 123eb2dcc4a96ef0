package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-quake-alerts/internal/api"
	"github.com/mr1hm/go-quake-alerts/internal/config"
	"github.com/mr1hm/go-quake-alerts/internal/core"
	"github.com/mr1hm/go-quake-alerts/internal/dispatch"
	"github.com/mr1hm/go-quake-alerts/internal/ingestion"
	"github.com/mr1hm/go-quake-alerts/internal/logging"
	"github.com/mr1hm/go-quake-alerts/internal/notify"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
	"github.com/mr1hm/go-quake-alerts/internal/repository"
	"github.com/mr1hm/go-quake-alerts/internal/settings"
	"github.com/mr1hm/go-quake-alerts/internal/severe"
	"github.com/mr1hm/go-quake-alerts/internal/sms"
	"github.com/mr1hm/go-quake-alerts/internal/sound"
	"github.com/mr1hm/go-quake-alerts/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.File)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Fatalf("Failed to create data directory: %v", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	st := store.New(db, metrics)
	presenter := notify.NewPresenter(clock)

	var sink dispatch.EventSink
	dispatchOpts := []dispatch.Option{
		dispatch.WithRepository(db),
		dispatch.WithClock(clock),
		dispatch.WithMetrics(metrics),
		dispatch.WithTopic(cfg.Broadcast.Topic),
	}
	if cfg.Kafka.Enabled() {
		sink = dispatch.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		dispatchOpts = append(dispatchOpts, dispatch.WithSink(sink))
		slog.Info("publishing alert log to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	var pusher dispatch.Pusher
	switch cfg.Broadcast.Provider {
	case "telegram":
		pusher, err = dispatch.NewTelegramPusher(cfg.Broadcast.TelegramToken, cfg.Broadcast.TelegramRate)
		if err != nil {
			logging.Fatalf("Failed to initialize broadcast provider: %v", err)
		}
	default:
		pusher = dispatch.NewNtfyClient(cfg.Broadcast.URL, cfg.Broadcast.Timeout)
	}

	var gateway sms.Gateway
	switch cfg.SMS.Provider {
	case "twilio":
		gateway = sms.NewTwilioGateway(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
	default:
		gateway = sms.NewHTTPGateway(cfg.SMS.GatewayURL, cfg.SMS.Timeout)
	}

	var factory sound.DeviceFactory
	if cfg.Sound.Enabled {
		factory = sound.WAVDeviceFactory(cfg.Sound.Dir)
	}

	app := core.New(ctx, core.Components{
		Settings:  settings.NewHandle(st.LoadSettings(ctx), st),
		Severe:    severe.NewManager(clock, cfg.Alerts.SevereAlertTTL),
		Sound:     sound.NewSynthesizer(factory, metrics),
		Notify:    presenter,
		Dispatch:  dispatch.NewManager(pusher, presenter, dispatchOpts...),
		SMS:       sms.NewManager(ctx, gateway, st, presenter, metrics),
		Store:     st,
		Sink:      sink,
		Metrics:   metrics,
		Workers:   cfg.Worker.Count,
		QueueSize: cfg.Worker.BufferSize,
	},
		ingestion.NewFeedClient(cfg.Feed.URL, cfg.Feed.Timeout),
		ingestion.WithClock(clock),
		ingestion.WithInterval(cfg.Feed.PollInterval),
		ingestion.WithLimit(cfg.Feed.Limit),
		ingestion.WithMetrics(metrics),
	)
	app.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(app, cfg.Server.RateLimitRPS)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Stop drains queued broadcasts, so the root context stays live until it returns.
	if err := app.Stop(); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	cancel()

	slog.Info("shutdown complete")
}
