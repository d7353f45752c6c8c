package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"offerflow/actionlink"
	"offerflow/api"
	"offerflow/config"
	"offerflow/db"
	"offerflow/notify"
	"offerflow/offer"
	"offerflow/sweep"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	log := newLogger(cfg)

	ctx := context.Background()

	var store offer.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap database pool")
		}
		defer pool.Close()
		store = offer.NewRepository(pool)
	} else {
		log.Warn().Msg("DATABASE_URL is empty; using in-memory store (development only)")
		store = offer.NewMemoryStore()
	}

	notifier := notify.NewLogNotifier(log)
	service := offer.NewService(store, notifier, log)
	runner := sweep.NewRunner(store, notifier, cfg.Rules(), log)

	var links *actionlink.Issuer
	if cfg.ActionLinkSecret != "" {
		issuer, err := actionlink.NewIssuer(cfg.ActionLinkSecret, cfg.ActionLinkTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap action link issuer")
		}
		links = issuer
		runner = runner.WithActionLinks(issuer)
	} else {
		log.Warn().Msg("ACTION_LINK_SECRET is empty; reminder emails will carry no accept/reject links")
	}

	router := api.NewRouter(api.NewHandlers(service, runner, links, log), log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", cfg.Port).Msg("offer lifecycle api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
