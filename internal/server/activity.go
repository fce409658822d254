package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/collegeadmin/internal/activity"
	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// recordActivity indexes a successful mutation. Indexing is best-effort:
// failures are logged and never fail the request.
func (s *Server) recordActivity(ctx context.Context, op activity.Op, es *schema.EntitySchema, rec record.Record) {
	if s.activity == nil {
		return
	}
	actor := ""
	if claims := ClaimsFromContext(ctx); claims != nil {
		actor = claims.Email
	}
	err := s.activity.Index(ctx, activity.Mutation{
		Op:     op,
		Entity: es.Name,
		Record: s.present(es, rec),
		Actor:  actor,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("entity", es.Name).Str("id", rec.ID()).Msg("activity indexing failed")
	}
}

type activityPage struct {
	Entries    []activity.Entry `json:"entries"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Total      int              `json:"total"`
}

func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if s.reg.Entity(entity) == nil {
		writeError(w, http.StatusNotFound, "Unknown entity "+entity)
		return
	}
	opts := activity.QueryOptions{
		Limit:  parseLimit(r),
		Cursor: r.URL.Query().Get("cursor"),
	}
	if op := r.URL.Query().Get("op"); op != "" {
		opts.Ops = []activity.Op{activity.Op(op)}
	}
	entries, next, total, err := s.activity.Store().QueryByRecord(r.Context(), entity, chi.URLParam(r, "id"), opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("querying activity")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, activityPage{Entries: entries, NextCursor: next, Total: total})
}

func (s *Server) handleActivitySearch(w http.ResponseWriter, r *http.Request) {
	entries, total, err := s.activity.Store().Search(r.Context(), r.URL.Query().Get("q"), activity.SearchOptions{
		Entity: r.URL.Query().Get("entity"),
		Limit:  parseLimit(r),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("searching activity")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, activityPage{Entries: entries, Total: total})
}
