// Command console runs the college admin console: a websocket endpoint that
// drives per-operator screens against the REST backend.
//
// Usage:
//
//	console -login admin@college.edu   # password from COLLEGEADMIN_PASSWORD
//	console                            # serve with the saved token
//	console -logout
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/matthewbaird/collegeadmin/internal/config"
	"github.com/matthewbaird/collegeadmin/internal/console"
	"github.com/matthewbaird/collegeadmin/internal/credentials"
	"github.com/matthewbaird/collegeadmin/internal/logging"
	"github.com/matthewbaird/collegeadmin/internal/notify"
	"github.com/matthewbaird/collegeadmin/internal/schema"
	"github.com/matthewbaird/collegeadmin/internal/server"
	"github.com/matthewbaird/collegeadmin/internal/session"
	"github.com/matthewbaird/collegeadmin/internal/store"
	"github.com/matthewbaird/collegeadmin/internal/wire"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	loginEmail := flag.String("login", "", "log in as this email before serving")
	logout := flag.Bool("logout", false, "log out, forget the saved token and exit")
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

	credFile := credentials.File{Path: cfg.Console.CredentialsFile}
	creds, err := credFile.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading credentials")
	}

	client := store.New(cfg.Console.APIBase, reg,
		store.WithHTTPClient(&http.Client{Timeout: cfg.Console.RequestTimeout}),
		store.WithToken(creds.Token),
		store.WithLogger(logging.Component("store")),
	)

	if *logout {
		if err := client.Logout(ctx); err != nil {
			logger.Warn().Err(err).Msg("store logout failed, clearing local token anyway")
		}
		if err := credFile.Clear(); err != nil {
			logger.Fatal().Err(err).Msg("clearing credentials")
		}
		logger.Info().Msg("logged out")
		return
	}

	if *loginEmail != "" {
		sess, err := client.Login(ctx, store.Credentials{
			Email:    *loginEmail,
			Password: os.Getenv("COLLEGEADMIN_PASSWORD"),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("login")
		}
		creds = &credentials.Credentials{Token: sess.Token, User: sess.User}
		if err := credFile.Save(creds); err != nil {
			logger.Fatal().Err(err).Msg("saving credentials")
		}
		logger.Info().Str("email", creds.Email()).Msg("logged in")
	}
	if creds.Empty() {
		logger.Warn().Msg("no saved token; requests run unauthenticated")
	}

	bus := notify.NewBus(256)
	inbox := notify.NewInbox(64)
	bus.Subscribe("log", notify.NewLogConsumer(logging.Component("notify")))
	bus.Subscribe("inbox", inbox)
	bus.Start(ctx)
	defer bus.Stop()

	sessions := session.NewManager(cfg.Console.SessionMaxAge, cfg.Console.SessionIdle, func(id string) *console.Workspace {
		return console.NewWorkspace(reg, client, bus,
			console.WithSession(id),
			console.WithLogger(logging.Component("console").With().Str("session", id).Logger()),
		)
	})
	go sessions.Run(ctx, time.Minute)

	operator := creds.Email()
	ws := wire.NewHandler(reg, sessions, inbox, func() string { return operator }, logging.Component("wire"))

	httpLogger := logging.Component("http")
	r := chi.NewRouter()
	r.Use(server.Recovery(httpLogger), server.Logging(httpLogger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/ws", ws)

	if err := server.Run(ctx, cfg.Console.Addr, r, logger); err != nil {
		logger.Error().Err(err).Msg("console server error")
	}
}
