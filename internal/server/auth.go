package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

// accountEntity is the entity whose records can log in.
const accountEntity = "user"

// Token purposes. Session tokens carry no purpose claim.
const (
	purposeSession = ""
	purposeReset   = "password_reset"
)

// Claims are carried by every token the server issues.
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

var errRevoked = errors.New("token revoked")

// tokenIssuer signs and verifies HS256 tokens and remembers logged-out ones
// until they would have expired anyway.
type tokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

func newTokenIssuer(secret, issuer string, ttl time.Duration, now func() time.Time) *tokenIssuer {
	return &tokenIssuer{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		now:     now,
		revoked: make(map[string]time.Time),
	}
}

func (t *tokenIssuer) issue(userID, email string) (string, error) {
	return t.issueFor(purposeSession, userID, email, t.ttl)
}

func (t *tokenIssuer) issueFor(purpose, userID, email string, ttl time.Duration) (string, error) {
	now := t.now().UTC()
	claims := Claims{
		UserID:  userID,
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// parse verifies a session token.
func (t *tokenIssuer) parse(tokenString string) (*Claims, error) {
	return t.parseFor(purposeSession, tokenString)
}

// parseFor verifies a token issued for purpose that has not been revoked.
func (t *tokenIssuer) parseFor(purpose, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose {
		return nil, jwt.ErrTokenInvalidClaims
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, gone := t.revoked[claims.ID]; gone {
		return nil, errRevoked
	}
	return claims, nil
}

func (t *tokenIssuer) revoke(claims *Claims) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, id)
		}
	}
	exp := now.Add(t.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	t.revoked[claims.ID] = exp
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type claimsKey struct{}

// ClaimsFromContext returns the claims attached by the auth middleware.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		claims, err := s.tokens.parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  record.Record `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Email" && verrs[0].Tag() == "email" {
			writeError(w, http.StatusBadRequest, "A valid email is required")
			return
		}
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.userByEmail(r.Context(), req.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing users for login")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.String("password")), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.tokens.issue(user.ID(), user.String("email"))
	if err != nil {
		s.logger.Error().Err(err).Msg("signing token")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.logger.Info().Str("user", user.ID()).Msg("login")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: s.present(s.reg.Entity(accountEntity), user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		if claims, err := s.tokens.parse(token); err == nil {
			s.tokens.revoke(claims)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func hashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
