// Command server runs the savethebeat HTTP service: the Slack events webhook,
// the Spotify account-linking flow, and the audit API, backed by SQLite.
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

	"github.com/savethebeat/savethebeat/internal/config"
	httpapi "github.com/savethebeat/savethebeat/internal/http"
	"github.com/savethebeat/savethebeat/internal/oauthstate"
	"github.com/savethebeat/savethebeat/internal/observability"
	"github.com/savethebeat/savethebeat/internal/repo"
	"github.com/savethebeat/savethebeat/internal/services"
	"github.com/savethebeat/savethebeat/internal/slack"
	"github.com/savethebeat/savethebeat/internal/spotify"
	"github.com/savethebeat/savethebeat/internal/sysutil"
	"github.com/savethebeat/savethebeat/internal/worker"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Outbound providers.
	chat := slack.NewClient(cfg.Slack.BotToken, cfg.ProviderTimeout)
	oauth := spotify.NewOAuth(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL)
	saver := spotify.NewClient(cfg.ProviderTimeout)

	// Pipeline: mention → thread → track → token → save → reaction + audit.
	tokens := services.NewTokenService(db, oauth)
	mentions := services.NewMentionService(db, chat, saver, tokens, cfg.BaseURL)

	pool := worker.NewPool(mentions, cfg.Worker.Count, cfg.Worker.QueueSize, cfg.Worker.JobTimeout)
	pool.Start()

	states := oauthstate.New(cfg.OAuthStateTTL)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, pool, oauth, states, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}

	// Stop accepting requests, then drain the pipeline.
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := pool.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("worker shutdown")
	}

	log.Info().Msg("bye")
}
