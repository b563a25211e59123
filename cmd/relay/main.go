package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/broker"
	"github.com/vladislav-moscow/Social/internal/config"
	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/metrics"
	"github.com/vladislav-moscow/Social/internal/relay"
	"github.com/vladislav-moscow/Social/internal/telemetry"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile, "relay.log"); err != nil {
		fmt.Fprintf(os.Stderr, "relay: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	metrics.Initialize()

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "social-relay",
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}

	hub := relay.NewHub()
	hub.SetRateLimitConfig(relay.RateLimitConfig{
		MaxMessagesPerSecond: cfg.RateLimit,
		BurstSize:            cfg.RateBurst,
	})
	go hub.Run()

	subCtx, stopSub := context.WithCancel(context.Background())
	defer stopSub()

	if cfg.Redis.Enabled {
		b, err := broker.NewRedisBroker(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, persisted-message fan-out disabled", err)
		} else {
			defer b.Close()
			go func() {
				if err := b.Subscribe(subCtx, hub.DeliverPersisted); err != nil {
					logger.ErrorWithFields("Broker subscription ended", err)
				}
			}()
		}
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: relay.NewRouter(hub, cfg.AllowedOrigin),
	}

	go func() {
		logger.Log.Info("Relay listening",
			zap.String("addr", cfg.Addr()),
			zap.String("allowed_origin", cfg.AllowedOrigin))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Relay server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down relay")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	stopSub()
	if err := hub.Shutdown(ctx); err != nil {
		logger.WarnWithFields("Relay hub shutdown", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Relay forced to shutdown", err)
	}
	if err := telemetry.Shutdown(ctx, tp); err != nil {
		logger.WarnWithFields("Tracer shutdown", err)
	}
	logger.Log.Info("Relay exited")
}
