// Command sweeper performs one sweep over all open offers and exits. An
// external cron-like trigger runs it once per day; a non-zero exit tells
// the trigger to reschedule. Running it twice on the same day is harmless.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"offerflow/actionlink"
	"offerflow/config"
	"offerflow/db"
	"offerflow/notify"
	"offerflow/offer"
	"offerflow/sweep"
)

func main() {
	flNow := flag.String("now", "", "sweep reference time, RFC3339 (defaults to wall clock)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()
	log := newLogger(cfg)

	now := time.Now()
	if *flNow != "" {
		parsed, err := time.Parse(time.RFC3339, *flNow)
		if err != nil {
			log.Fatal().Err(err).Msg("parse -now")
		}
		now = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap database pool")
	}
	defer pool.Close()

	store := offer.NewRepository(pool)
	notifier := notify.NewLogNotifier(log)
	runner := sweep.NewRunner(store, notifier, cfg.Rules(), log)

	if cfg.ActionLinkSecret != "" {
		issuer, err := actionlink.NewIssuer(cfg.ActionLinkSecret, cfg.ActionLinkTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap action link issuer")
		}
		runner = runner.WithActionLinks(issuer)
	}

	report, runErr := runner.Run(ctx, now)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error().Err(err).Msg("encode report")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("sweep run aborted")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
