package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/VisualStoriesHCA/HCABackend/internal/achievements"
	"github.com/VisualStoriesHCA/HCABackend/internal/config"
	"github.com/VisualStoriesHCA/HCABackend/internal/engine"
	"github.com/VisualStoriesHCA/HCABackend/internal/generators"
	"github.com/VisualStoriesHCA/HCABackend/internal/storage"
	"github.com/VisualStoriesHCA/HCABackend/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg.Logging)

	// MySQL is mandatory: every aggregate lives there.
	mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MySQL")
	}
	defer mysqlStore.Close()
	log.Info().Msg("MySQL connected")

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := mysqlStore.SeedCatalogs(seedCtx); err != nil {
		cancelSeed()
		log.Fatal().Err(err).Msg("failed to seed catalogs")
	}
	cancelSeed()

	// Redis only backs the catalog cache, so the server runs without it.
	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, catalog caching disabled")
		redisStore = nil
	} else {
		defer redisStore.Close()
		log.Info().Msg("Redis connected")
	}

	if cfg.AI.OpenAI.APIKey == "" {
		log.Warn().Msg("no OpenAI API key configured, generative mutations will fail")
	}
	mediaClient := generators.NewOpenAIMediaClient(cfg.AI.OpenAI.APIKey, generators.OpenAIOptions{
		BaseURL:    cfg.AI.OpenAI.BaseURL,
		TextModel:  cfg.AI.OpenAI.TextModel,
		ImageModel: cfg.AI.OpenAI.ImageModel,
		TTSModel:   cfg.AI.OpenAI.TTSModel,
		TTSVoice:   cfg.AI.OpenAI.TTSVoice,
	})

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Storage.DataDir).Msg("failed to create data directory")
	}
	imageStore := generators.NewFileImageStore(cfg.Storage.DataDir, cfg.Storage.MediaURLPrefix)
	audioStore := generators.NewFileAudioStore(cfg.Storage.DataDir, cfg.Storage.MediaURLPrefix)

	achievementEngine := achievements.NewEngine(mysqlStore)

	storyEngine := engine.NewStoryEngine(mysqlStore, mysqlStore, mediaClient, imageStore, audioStore)
	storyEngine.AttachProgress(achievementEngine)

	hub := web.NewStoryHub()
	go hub.Run()
	storyEngine.AttachNotifier(hub)

	items := web.NewItemHandlers(storyEngine, achievementEngine, mysqlStore, mysqlStore, redisStore)
	r := web.NewRouter(cfg, items, hub, mediaClient)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in background
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
