package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Annad25/gpu-monitor/internal/config"
	"github.com/Annad25/gpu-monitor/internal/httpapi"
	"github.com/Annad25/gpu-monitor/internal/logging"
	"github.com/Annad25/gpu-monitor/internal/monitor"
	"github.com/Annad25/gpu-monitor/internal/notify"
	"github.com/Annad25/gpu-monitor/internal/probe"
	"github.com/Annad25/gpu-monitor/internal/store"
	"github.com/Annad25/gpu-monitor/internal/store/memory"
	mongostore "github.com/Annad25/gpu-monitor/internal/store/mongo"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var incidents store.IncidentStore
	if cfg.MongoURI != "" {
		ms, err := mongostore.New(ctx, cfg.MongoURI)
		if err != nil {
			logger.Fatal("mongo_connect_failed", zap.Error(err))
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Close(closeCtx)
		}()
		// Reachability is re-checked every tick; a failing ping here only
		// means we start degraded.
		if err := ms.Ping(ctx); err != nil {
			logger.Warn("mongo_unreachable_at_startup", zap.Error(err))
		} else {
			logger.Info("mongo_connected")
		}
		incidents = ms
	} else {
		logger.Warn("no_store_configured_using_memory")
		incidents = memory.New()
	}

	var channels notify.Multi
	for _, u := range cfg.WebhookURLs {
		channels = append(channels, notify.NewWebhook(u))
	}
	if len(channels) == 0 {
		logger.Warn("no_alert_channels_configured")
	}

	api := httpapi.NewServer(logger, cfg.ServerID)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HealthPort),
		Handler: api.Router(),
	}
	go func() {
		logger.Info("health_listen", zap.Int("port", cfg.HealthPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health_server_error", zap.Error(err))
		}
	}()

	loop := monitor.New(logger, incidents, probe.New(cfg.ConnectivityURL), channels, nil, monitor.Config{
		ServerID:          cfg.ServerID,
		HealthPort:        cfg.HealthPort,
		Targets:           cfg.Targets,
		TickInterval:      cfg.TickInterval,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		ConfirmationDelay: cfg.ConfirmationDelay,
		ReminderInterval:  cfg.ReminderInterval,
	})
	loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("shutdown_complete")
}
