// Package main provides the entrypoint for the local BAXperience backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxperience/baxperience/internal/config"
	"github.com/baxperience/baxperience/internal/database"
	"github.com/baxperience/baxperience/internal/devapi"
	"github.com/baxperience/baxperience/internal/devapi/middleware"
	"github.com/baxperience/baxperience/internal/devapi/poi"
	"github.com/baxperience/baxperience/internal/devapi/store"
	"github.com/baxperience/baxperience/internal/devapi/token"
	"github.com/baxperience/baxperience/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "baxperience-devapi"

	cfg, err := config.LoadDevAPI()
	if err != nil {
		log := config.NewLogger(os.Stderr, serviceName, Version, "info")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := config.NewLogger(os.Stdout, serviceName, Version, cfg.LogLevel)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting BAXperience dev API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Exporting() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	var st store.Store
	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		st = pg
		log.Info().Str("database", cfg.Database.Redacted()).Msg("database connected")
	} else {
		st = store.NewMemoryStore()
		log.Warn().Msg("no database configured, using the in-memory store")
	}

	signingKey := cfg.JWTSigningKey
	if signingKey == "" {
		if signingKey, err = token.NewSigningKey(); err != nil {
			log.Fatal().Err(err).Msg("failed to generate signing key")
		}
		log.Warn().Msg("JWT_SIGNING_KEY not set, tokens are signed with a random key")
	}
	tokens, err := token.NewService(token.Config{
		SigningKey: signingKey,
		TTL:        cfg.TokenTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}

	catalog := poi.DefaultCatalog()
	log.Info().Int("places", catalog.Len()).Msg("place catalog loaded")

	router := devapi.NewRouter(devapi.RouterConfig{
		Version:       Version,
		Logger:        log,
		Store:         st,
		Tokens:        tokens,
		Catalog:       catalog,
		Metrics:       metrics,
		RateLimit:     middleware.PerMinute(cfg.RateLimit),
		AuthRateLimit: middleware.AuthRateLimit,
		RequireTLS:    cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
