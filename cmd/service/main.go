package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/config"
	"github.com/kjstillabower/station-conditions-service/internal/health"
	httphandler "github.com/kjstillabower/station-conditions-service/internal/http"
	"github.com/kjstillabower/station-conditions-service/internal/observability"
	"github.com/kjstillabower/station-conditions-service/internal/probe"
	"github.com/kjstillabower/station-conditions-service/internal/service"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	transport := client.NewTransport(cfg.UpstreamTimeout, cfg.UserAgent, client.BreakerConfig{
		Enabled:          cfg.BreakerEnabled,
		FailureThreshold: cfg.BreakerFailureThreshold,
		Timeout:          cfg.BreakerTimeout,
		HalfOpenRequests: cfg.BreakerHalfOpenRequests,
	}, logger)
	if cfg.BreakerEnabled {
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("timeout", cfg.BreakerTimeout))
	}

	geocoder, err := client.NewOpenMeteoGeocoder(transport, cfg.GeocoderURL)
	if err != nil {
		logger.Fatal("geocoder client", zap.Error(err))
	}
	nws, err := client.NewNWSClient(transport, cfg.WeatherAPIURL)
	if err != nil {
		logger.Fatal("weather.gov client", zap.Error(err))
	}

	conditions := service.NewConditionsService(geocoder, nws, service.Options{
		StationLimit: cfg.StationLimit,
		RecentLimit:  cfg.RecentLimit,
		Timeout:      cfg.RequestTimeout,
	}, logger)

	tracker := health.NewTracker()
	monitor := health.NewMonitor(health.Config{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
	}, tracker, transport, logger)

	observability.RegisterRateLimitGauges(
		func() float64 { return float64(tracker.RequestCount(cfg.OverloadWindow)) },
		func() float64 { return float64(tracker.DenialCount(cfg.OverloadWindow)) },
	)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	router := httphandler.NewRouter(httphandler.NewHandler(conditions, monitor, logger), httphandler.RouterOptions{
		Limiter:        limiter,
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
	})

	var scheduler *probe.Scheduler
	if cfg.ProbeEnabled && len(cfg.TrackedLocations) > 0 {
		prober := probe.NewProber(conditions, cfg.TrackedLocations, cfg.RequestTimeout, logger)
		scheduler, err = probe.NewScheduler(cfg.ProbeSchedule, prober, logger)
		if err != nil {
			logger.Fatal("probe scheduler", zap.Error(err))
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	monitor.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("probe scheduler stop", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
