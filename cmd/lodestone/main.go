package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"lodestone/internal/api"
	"lodestone/internal/app"
	"lodestone/internal/config"
	"lodestone/internal/logger"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal().Err(err).Msg("could not resolve user config directory")
	}
	appName := "lodestone"
	if config.IsDev() {
		appName = "lodestone-dev"
	}
	configDir := filepath.Join(userConfigDir, appName)

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading configuration")
	}
	logger.Setup(cfg.Log)

	log.Info().
		Str("config", configDir).
		Str("database", cfg.Storage.Path).
		Dur("liveness", cfg.Registry.LivenessThreshold).
		Msg("starting lodestone coordinator")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialise coordinator")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.Bans.RunSweeper(gctx, cfg.Ban.SweepInterval)
		return nil
	})
	g.Go(func() error {
		container.Poller.Run(gctx, cfg.RCON.Interval)
		return nil
	})
	g.Go(func() error {
		container.Snapshots.Run(gctx, cfg.Snapshot.Interval)
		return nil
	})

	if cfg.Resync.Enabled {
		g.Go(func() error {
			rep := container.Resyncer.Run(gctx)
			log.Info().
				Int("announced", rep.Announced).
				Int("announce_failed", rep.AnnounceFailed).
				Int("requested", rep.Requested).
				Int("request_failed", rep.RequestFailed).
				Msg("restart resync finished")
			return nil
		})
	}

	apiServer := api.NewAPIServer(container)
	g.Go(func() error {
		return apiServer.Start(gctx, cfg.HTTP.ListenAddr)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("api server stopped")
	}
	stop()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("error closing storage")
	}
	log.Info().Msg("lodestone stopped")
}
