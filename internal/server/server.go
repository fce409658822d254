// Package server is the reference Remote Store backend: a REST API over the
// college entities that enforces required fields, enumerations, numeric
// bounds, unique business keys, referential integrity and immutability.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/collegeadmin/internal/activity"
	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/repository"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// Config holds server configuration.
type Config struct {
	Registry    *schema.Registry
	Store       repository.Store
	JWTSecret   string
	JWTIssuer   string
	TokenTTL    time.Duration
	RequireAuth bool
	Logger      zerolog.Logger
	Now         func() time.Time

	// OpenRegistration keeps account creation public when RequireAuth is set.
	OpenRegistration bool
	// ResetTokenTTL bounds password reset tokens; zero means one hour.
	ResetTokenTTL time.Duration
	// OnPasswordReset delivers reset tokens. The default logs the token.
	OnPasswordReset func(context.Context, PasswordReset)

	// Activity, if set, indexes every mutation and serves /api/activity.
	Activity *activity.Indexer
}

// Server serves the entity CRUD contract under /api.
type Server struct {
	reg         *schema.Registry
	store       repository.Store
	tokens      *tokenIssuer
	activity    *activity.Indexer
	validate    *validator.Validate
	requireAuth bool
	openSignup  bool
	resetTTL    time.Duration
	onReset     func(context.Context, PasswordReset)
	logger      zerolog.Logger
	now         func() time.Time

	// mu serialises mutations so uniqueness and referrer checks see a
	// stable collection.
	mu sync.Mutex
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	s := &Server{
		reg:         cfg.Registry,
		store:       cfg.Store,
		tokens:      newTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, ttl, now),
		activity:    cfg.Activity,
		validate:    validator.New(),
		requireAuth: cfg.RequireAuth,
		openSignup:  cfg.OpenRegistration,
		resetTTL:    resetTTL,
		onReset:     cfg.OnPasswordReset,
		logger:      cfg.Logger,
		now:         now,
	}
	if s.onReset == nil {
		s.onReset = func(_ context.Context, pr PasswordReset) {
			s.logger.Info().Str("user", pr.UserID).Str("token", pr.Token).Time("expires_at", pr.ExpiresAt).Msg("password reset token issued")
		}
	}
	return s
}

// Router returns the HTTP handler with every route registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(s.logger), Logging(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.activity != nil {
			r.Group(func(r chi.Router) {
				if s.requireAuth {
					r.Use(s.authMiddleware)
				}
				r.Get("/activity/search", s.handleActivitySearch)
				r.Get("/activity/{entity}/{id}", s.handleRecordActivity)
			})
		}
		for _, name := range s.reg.EntityNames() {
			es := s.reg.Entity(name)
			r.Route("/"+es.Path, func(r chi.Router) {
				publicCreate := false
				if es.Name == accountEntity {
					r.Post("/auth", s.handleLogin)
					r.Post("/logout", s.handleLogout)
					r.Post("/reset-pass", s.handleResetRequest)
					r.Get("/verify-reset-token/{token}", s.handleVerifyResetToken)
					r.Post("/reset-pass/{token}", s.handleResetPassword)
					if s.openSignup {
						publicCreate = true
						r.Post("/create", s.handleCreate(es))
					}
				}
				r.Group(func(r chi.Router) {
					if s.requireAuth {
						r.Use(s.authMiddleware)
					}
					r.Get("/get", s.handleList(es))
					r.Get("/get/{id}", s.handleGet(es))
					if !publicCreate {
						r.Post("/create", s.handleCreate(es))
					}
					r.Put("/update/{id}", s.handleUpdate(es))
					r.Delete("/delete/{id}", s.handleDelete(es))
				})
			})
		}
	})
	return r
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("addr", addr).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", addr, err)
	}
	return nil
}

// present strips write-only fields before a record leaves the server.
func (s *Server) present(es *schema.EntitySchema, rec record.Record) record.Record {
	out := rec.Clone()
	for _, name := range es.FieldOrder {
		if es.Fields[name].WriteOnly {
			delete(out, name)
		}
	}
	return out
}

func (s *Server) handleList(es *schema.EntitySchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := s.store.List(r.Context(), es.Name)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		out := make([]record.Record, len(recs))
		for i, rec := range recs {
			out[i] = s.present(es, rec)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGet(es *schema.EntitySchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.store.Get(r.Context(), es.Name, chi.URLParam(r, "id"))
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		writeJSON(w, http.StatusOK, s.present(es, rec))
	}
}

func (s *Server) handleCreate(es *schema.EntitySchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload record.Record
		if err := decodeJSON(r, &payload); err != nil || payload == nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		id := repository.NewID()
		rec, err := s.build(r.Context(), es, id, nil, payload)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		rec[record.IDField] = id
		stored, err := s.store.Insert(r.Context(), es.Name, rec)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		s.logger.Debug().Str("entity", es.Name).Str("id", id).Msg("created")
		s.recordActivity(r.Context(), activity.OpCreated, es, stored)
		writeJSON(w, http.StatusCreated, s.present(es, stored))
	}
}

func (s *Server) handleUpdate(es *schema.EntitySchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var payload record.Record
		if err := decodeJSON(r, &payload); err != nil || payload == nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		existing, err := s.store.Get(r.Context(), es.Name, id)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		rec, err := s.build(r.Context(), es, id, existing, payload)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		stored, err := s.store.Replace(r.Context(), es.Name, id, rec)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		s.logger.Debug().Str("entity", es.Name).Str("id", id).Msg("updated")
		s.recordActivity(r.Context(), activity.OpUpdated, es, stored)
		writeJSON(w, http.StatusOK, s.present(es, stored))
	}
}

func (s *Server) handleDelete(es *schema.EntitySchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		s.mu.Lock()
		defer s.mu.Unlock()
		existing, err := s.store.Get(r.Context(), es.Name, id)
		if err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		if err := s.checkReferrers(r.Context(), es, id); err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		if err := s.store.Delete(r.Context(), es.Name, id); err != nil {
			storeErrorToHTTP(w, es, err)
			return
		}
		s.logger.Debug().Str("entity", es.Name).Str("id", id).Msg("deleted")
		s.recordActivity(r.Context(), activity.OpDeleted, es, existing)
		writeJSON(w, http.StatusOK, map[string]string{"message": es.Title + " deleted successfully"})
	}
}
