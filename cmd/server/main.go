package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldops/backend/internal/app"
	"github.com/fieldops/backend/internal/infrastructure/auth"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting fieldops backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", app.Version),
	)

	ctx := context.Background()

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    app.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracer provider", zap.Error(err))
	}

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    app.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize meter provider", zap.Error(err))
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    app.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize logger provider", zap.Error(err))
	}
	// From here on every record is also exported over OTLP when enabled.
	log = logs.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	container, err := app.New(ctx, cfg, log, app.Options{Meters: meters})
	if err != nil {
		log.Fatal("failed to initialize services", zap.Error(err))
	}

	maintenance, err := container.StartMaintenance(ctx)
	if err != nil {
		log.Fatal("failed to start maintenance jobs", zap.Error(err))
	}

	handlers := router.Handlers{
		Invoice:    handler.NewInvoiceHandler(container.Invoices),
		Collection: handler.NewCollectionHandler(container.Collection, container.Cancellation),
		Vault:      handler.NewVaultHandler(container.Treasury),
		Custody:    handler.NewCustodyHandler(container.Custody),
		Report:     handler.NewReportHandler(container.Stats, container.Bonus, container.Reconciliation),
		Health:     handler.NewHealthHandler(cfg.App.Name, app.Version, container.Database),
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.HTTP.AllowHeaderIdentity {
		log.Warn("header identity is enabled, X-User-ID and X-User-Role are trusted without a token")
	}

	engine := router.NewEngine(handlers, router.Options{
		Config:      cfg,
		Logger:      log,
		JWT:         auth.NewJWTService(cfg.JWT),
		Idempotency: container.Idempotency,
		Meters:      meters,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := maintenance.Stop(shutdownCtx); err != nil {
		log.Error("error stopping maintenance jobs", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		log.Error("error releasing resources", zap.Error(err))
	}
	// Providers flush last so the shutdown logs and spans above are exported.
	if err := meters.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down meter provider", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down tracer provider", zap.Error(err))
	}
	if err := logs.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down logger provider", zap.Error(err))
	}

	log.Info("server exited")
}
