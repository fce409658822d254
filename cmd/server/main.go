// Command server runs the reference college REST backend that the console
// talks to.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matthewbaird/collegeadmin/internal/activity"
	"github.com/matthewbaird/collegeadmin/internal/config"
	"github.com/matthewbaird/collegeadmin/internal/logging"
	"github.com/matthewbaird/collegeadmin/internal/repository"
	"github.com/matthewbaird/collegeadmin/internal/schema"
	"github.com/matthewbaird/collegeadmin/internal/seed"
	"github.com/matthewbaird/collegeadmin/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	logger := logging.Configure(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	reg, err := schema.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading entity registry")
	}

	var store repository.Store
	if dsn := cfg.Server.DatabaseURL; dsn != "" {
		s, err := repository.OpenSQLite(ctx, dsn)
		if err != nil {
			logger.Fatal().Err(err).Msg("opening database")
		}
		logger.Info().Str("dsn", dsn).Msg("using sqlite store")
		store = s
	} else {
		logger.Info().Msg("using in-memory store")
		store = repository.NewMemoryStore()
	}
	defer store.Close()

	if cfg.Server.Seed {
		if err := seed.College(ctx, store, logging.Component("seed"), time.Now()); err != nil {
			logger.Fatal().Err(err).Msg("seeding")
		}
	}

	srv := server.New(server.Config{
		Registry:    reg,
		Store:       store,
		JWTSecret:   cfg.Server.JWTSecret,
		JWTIssuer:   cfg.Server.JWTIssuer,
		TokenTTL:    cfg.Server.TokenTTL,
		RequireAuth: cfg.Server.RequireAuth,
		Logger:      logging.Component("http"),
		Activity:    activity.NewIndexer(reg, activity.NewMemoryStore()),

		OpenRegistration: cfg.Server.OpenRegistration,
		ResetTokenTTL:    cfg.Server.ResetTokenTTL,
		OnPasswordReset: func(_ context.Context, pr server.PasswordReset) {
			// No mail transport; the link goes to the log for the operator to relay.
			logger.Info().
				Str("email", pr.Email).
				Str("link", cfg.Server.ResetLinkBase+pr.Token).
				Time("expires_at", pr.ExpiresAt).
				Msg("password reset link")
		},
	})

	if err := server.Run(ctx, cfg.Server.Addr, srv.Router(), logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
