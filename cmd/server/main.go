// Command server runs the CRM chat delivery API.
//
// Boot order:
//  1. Load .env (best effort) and environment configuration.
//  2. Configure zerolog (level, optional pretty console output).
//  3. Open SQLite, run migrations, and build the provider gateway client.
//  4. Set up OpenTelemetry when enabled.
//  5. Start the subscription hub and mount routes.
//  6. Serve until SIGINT/SIGTERM, then drain: stop accepting requests,
//     close the hub (ending every event stream), and flush traces.
//
// The HTTP server runs with WriteTimeout disabled by default because the
// event-stream endpoint holds responses open indefinitely; slow-client
// protection comes from read/header timeouts and the hub's idle reaper.
//
// @title        CRM Chat API
// @version      1.0
// @description  Real-time chat delivery for a multi-tenant real-estate CRM: WhatsApp ingestion, outbound relay, and live SSE fan-out.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/imobchat/go-crm-chat/docs"
	"github.com/imobchat/go-crm-chat/internal/config"
	httpapi "github.com/imobchat/go-crm-chat/internal/http"
	"github.com/imobchat/go-crm-chat/internal/observability"
	"github.com/imobchat/go-crm-chat/internal/repo"
	"github.com/imobchat/go-crm-chat/internal/sse"
	"github.com/imobchat/go-crm-chat/internal/sysutil"
	"github.com/imobchat/go-crm-chat/internal/waha"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; production injects real env vars.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var flushTraces func(context.Context) error
	if cfg.OTEL.Enabled {
		flushTraces, err = observability.SetupOTel(shutdownCtx, cfg.OTEL, version)
		if err != nil {
			log.Fatal().Err(err).Msg("setup opentelemetry")
		}
	}

	gw := waha.NewClient(cfg.WAHA.BaseURL, cfg.WAHA.APIKey)

	hub := sse.NewHub(sse.Options{
		HeartbeatInterval: cfg.SSE.HeartbeatInterval,
		ReapInterval:      cfg.SSE.ReapInterval,
		IdleTimeout:       cfg.SSE.SubscriptionTTL,
	})
	hub.Start()

	r := gin.New()
	httpapi.RegisterRoutes(r, db, hub, gw, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-shutdownCtx.Done()
	log.Info().Msg("shutdown signal received")

	// Closing the hub first ends every open event stream, which releases the
	// handler goroutines Shutdown would otherwise wait on.
	hub.Close()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	if flushTraces != nil {
		if err := flushTraces(drainCtx); err != nil {
			log.Error().Err(err).Msg("flush traces")
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("server stopped")
}
