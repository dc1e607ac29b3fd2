package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"framestage/internal/api"
	"framestage/internal/audio"
	"framestage/internal/cache"
	"framestage/internal/capture"
	"framestage/internal/clips"
	"framestage/internal/config"
	"framestage/internal/media"
	"framestage/internal/playback"
	"framestage/internal/readiness"
	"framestage/internal/server"
	"framestage/internal/storage"
	"framestage/internal/timeline"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", api.Version).
		Msg("starting framestage")

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	// Core timeline state
	frames := timeline.NewStore()
	registry := clips.NewRegistry(logger)
	planner := audio.NewPlanner(registry, logger)
	ready := readiness.NewRegistry(cfg.Playback.TickInterval, logger)

	// Decode service collaborators
	prober := media.NewFFProbeProber(logger)
	if prober.IsAvailable() {
		logger.Info().Msg("ffprobe available - metadata probing enabled")
	} else {
		logger.Warn().Msg("ffprobe not found - sources degrade to zero metadata")
	}

	metadata, err := media.NewMetadataService(prober, cfg.Decoder.MetadataCache, ready, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metadata service")
	}

	frameCache := cache.NewFrameCache(cfg.Decoder.CacheCapacity, cfg.Decoder.CacheMaxSize)
	frameClient := media.NewFrameClient(cfg.Decoder.URL, cfg.Decoder.ConnectTimeout, frameCache, ready, logger)
	defer frameClient.Close()

	// Playback and capture
	scheduler := playback.NewScheduler(frames, playback.SystemClock(), playback.Options{
		FPS:       cfg.Playback.FPS,
		LastFrame: timeline.Frame(cfg.Playback.LastFrame),
		Loop:      cfg.Playback.Loop,
	}, logger)

	session := capture.NewSession(frames, ready, planner, store, logger)

	handler := api.NewHandler(frames, scheduler, registry, planner, metadata, ready, session, frameClient, logger)
	srv := server.New(cfg, logger, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx, cfg.Playback.TickInterval)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("received shutdown signal")
		cancel()

		// ctx is already done here; graceful drain needs its own context.
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
