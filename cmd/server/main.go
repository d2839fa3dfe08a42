package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/novatv-digital/adexclusion/internal/api"
	"github.com/novatv-digital/adexclusion/internal/cache"
	"github.com/novatv-digital/adexclusion/internal/config"
	"github.com/novatv-digital/adexclusion/internal/health"
	"github.com/novatv-digital/adexclusion/internal/publish"
	"github.com/novatv-digital/adexclusion/internal/purge"
	"github.com/novatv-digital/adexclusion/internal/scheduler"
	"github.com/novatv-digital/adexclusion/internal/storage"
)

func main() {
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	flag.Parse()

	if *healthCheck {
		performHealthCheck()
		return
	}

	setupLogger()

	log.Info().Msg("Ad exclusion service starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logStartupConfig(cfg)

	ctx := context.Background()
	store, err := storage.NewStore(ctx, storage.FactoryConfig{
		Type:          cfg.Store.Type,
		DataDir:       cfg.Store.DataDir,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage backend")
	}

	scriptCache := cache.NewScriptCache(cfg.Cache.MaxSize)

	purgeClient := purge.NewClient(purge.Config{
		APIBase:    cfg.Purge.APIBase,
		ZoneID:     cfg.Purge.ZoneID,
		APIToken:   cfg.Purge.APIToken,
		Timeout:    cfg.Purge.Timeout,
		ScriptURLs: cfg.ScriptURLs(),
	})
	if !purgeClient.Enabled() {
		log.Warn().Msg("CDN purge credentials not set, purge requests will be no-ops")
	}

	publisher := publish.NewManager(store)
	runner := scheduler.NewRunner(store, purgeClient, cfg.Scheduler.Window)
	checker := health.NewChecker(store, scriptCache)

	handlers := api.NewHandlers(store, publisher, scriptCache, checker, runner, purgeClient, cfg.Scheduler.CronSecret)

	routerConfig := api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}

	router := api.SetupRouter(handlers, routerConfig)
	app := router.App

	app.Server().ReadTimeout = cfg.Server.ReadTimeout
	app.Server().WriteTimeout = cfg.Server.WriteTimeout

	setupGracefulShutdown(app, store, router.Cleanup)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().
		Int("port", cfg.Server.Port).
		Str("addr", serverAddr).
		Msg("Starting HTTP server")

	if err := app.Listen(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("LOG_FORMAT") == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func logStartupConfig(cfg *config.Config) {
	log.Info().
		Int("server_port", cfg.Server.Port).
		Dur("server_read_timeout", cfg.Server.ReadTimeout).
		Dur("server_write_timeout", cfg.Server.WriteTimeout).
		Int("server_body_limit", cfg.Server.BodyLimit).
		Str("store_type", cfg.Store.Type).
		Str("store_data_dir", cfg.Store.DataDir).
		Int("cache_max_size", cfg.Cache.MaxSize).
		Dur("transition_window", cfg.Scheduler.Window).
		Bool("cron_secret_set", cfg.Scheduler.CronSecret != "").
		Strs("security_cors_origins", cfg.Security.CORSOrigins).
		Str("logging_level", cfg.Logging.Level).
		Str("logging_format", cfg.Logging.Format).
		Msg("Configuration loaded successfully")
}

func setupGracefulShutdown(app *fiber.App, store storage.Store, cleanup func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()

		log.Info().Msg("Received shutdown signal, initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info().Msg("Stopping HTTP server...")
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during HTTP server shutdown")
		}

		cleanup()

		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing storage backend")
		}

		log.Info().Msg("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func performHealthCheck() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{
		Timeout: 3 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
