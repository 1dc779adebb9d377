// apps/go-server/main.go
//
// Entry point for the minigames Go server.
// Wires configuration, logging, the game session store, the score backend
// client, the auth gate and the HTTP server; optionally starts the local
// development score backend alongside.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/bestscore"
	"github.com/robalobadob/minigames/apps/go-server/internal/config"
	"github.com/robalobadob/minigames/apps/go-server/internal/events"
	"github.com/robalobadob/minigames/apps/go-server/internal/gate"
	"github.com/robalobadob/minigames/apps/go-server/internal/httpserver"
	"github.com/robalobadob/minigames/apps/go-server/internal/logging"
	"github.com/robalobadob/minigames/apps/go-server/internal/scoreapi"
	"github.com/robalobadob/minigames/apps/go-server/internal/scoreserver"
	"github.com/robalobadob/minigames/apps/go-server/internal/store"
)

func main() {
	cfg := config.Load()

	logFile, err := logging.Setup(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, File: cfg.LogFile})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := assets.LoadCatalog()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game catalog")
	}

	if cfg.DevBackendAddr != "" {
		dev, err := scoreserver.New(scoreserver.Options{
			DBPath:     cfg.DevDBPath,
			Secret:     cfg.JWTSecret + ":backend",
			Migrations: assets.Migrations(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open dev score backend")
		}
		defer dev.Close()
		go func() {
			if err := dev.ListenAndServe(ctx, cfg.DevBackendAddr); err != nil {
				log.Error().Err(err).Msg("dev score backend exited")
			}
		}()
	}

	mem := store.NewMemoryStore()
	go mem.RunSweeper(ctx, time.Minute, cfg.SessionTTL, func(n int) {
		log.Info().Int("sessions", n).Msg("idle sessions swept")
	})

	bus := events.NewDispatcher()
	sessions := scoreapi.NewSessions(cfg.ScoreAPIURL, cfg.ScoreAPITimeout)
	tracker := bestscore.NewTracker(func(u string) bestscore.Backend { return sessions.For(u) }, bus)
	g := gate.New(sessions, gate.Options{
		Secret:     cfg.JWTSecret,
		CookieName: cfg.CookieName,
		TTL:        time.Duration(cfg.JWTExpiresDays) * 24 * time.Hour,
		Secure:     cfg.Production,
	})

	srv := httpserver.New(httpserver.Deps{
		Catalog:       catalog,
		Store:         mem,
		Gate:          g,
		Limiter:       gate.NewIPLimiter(cfg.AuthRatePerMin, 5),
		Tracker:       tracker,
		Bus:           bus,
		Leaderboard:   sessions.Public(),
		Origin:        cfg.ClientOrigin,
		SubmitTimeout: cfg.ScoreAPITimeout,
	})

	log.Info().Str("port", cfg.Port).Str("score_api", cfg.ScoreAPIURL).Msg("starting go-server")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}
