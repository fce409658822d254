package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/matthewbaird/collegeadmin/internal/activity"
	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/repository"
)

// PasswordReset is handed to Config.OnPasswordReset for delivery to the user.
type PasswordReset struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

const resetRequestedMessage = "Password reset email sent"

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPassword struct {
	Password string `json:"password" validate:"required"`
}

// handleResetRequest issues a single-use reset token for a known email. The
// response does not reveal whether the email is registered.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "A valid email is required")
		return
	}

	user, err := s.userByEmail(r.Context(), req.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing users for password reset")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		s.logger.Info().Msg("password reset requested for unknown email")
		writeJSON(w, http.StatusOK, map[string]string{"message": resetRequestedMessage})
		return
	}

	token, err := s.tokens.issueFor(purposeReset, user.ID(), user.String("email"), s.resetTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("signing reset token")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.onReset(r.Context(), PasswordReset{
		UserID:    user.ID(),
		Email:     user.String("email"),
		Token:     token,
		ExpiresAt: s.now().Add(s.resetTTL),
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": resetRequestedMessage})
}

func (s *Server) handleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	_, user, ok := s.resetSubject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": user.String("email")})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPassword
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Password is required")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	claims, user, ok := s.resetSubject(w, r)
	if !ok {
		return
	}
	es := s.reg.Entity(accountEntity)
	rec, err := s.build(r.Context(), es, user.ID(), user, record.Record{"password": req.Password})
	if err != nil {
		storeErrorToHTTP(w, es, err)
		return
	}
	stored, err := s.store.Replace(r.Context(), es.Name, user.ID(), rec)
	if err != nil {
		storeErrorToHTTP(w, es, err)
		return
	}
	s.tokens.revoke(claims)
	s.logger.Info().Str("user", user.ID()).Msg("password reset")
	s.recordActivity(r.Context(), activity.OpUpdated, es, stored)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful"})
}

// resetSubject verifies the {token} URL parameter and loads its user. On
// failure the response has been written.
func (s *Server) resetSubject(w http.ResponseWriter, r *http.Request) (*Claims, record.Record, bool) {
	claims, err := s.tokens.parseFor(purposeReset, chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return nil, nil, false
	}
	user, err := s.store.Get(r.Context(), accountEntity, claims.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return nil, nil, false
	case err != nil:
		storeErrorToHTTP(w, s.reg.Entity(accountEntity), err)
		return nil, nil, false
	}
	return claims, user, true
}

func (s *Server) userByEmail(ctx context.Context, email string) (record.Record, error) {
	users, err := s.store.List(ctx, accountEntity)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.String("email"), email) {
			return u, nil
		}
	}
	return nil, nil
}
