// Package auth issues and verifies the admin session: a signed,
// time-limited token carried in an HttpOnly cookie. The portal only
// ever asks one question of it — may the caller mutate.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pubfiles/pubfiles/internal/metrics"
)

// SessionCookie is the name of the admin session cookie.
const SessionCookie = "pub_session"

type contextKey string

const sessionContextKey contextKey = "session"

// Claims holds the session token claims. There is a single admin role,
// so the registered claims (expiry, issuer) are all that matters.
type Claims struct {
	jwt.RegisteredClaims
}

// Sessions issues and verifies admin session tokens. Secret and TTL are
// passed in explicitly, never read from the environment at call sites.
type Sessions struct {
	secret       []byte
	ttl          time.Duration
	passwordHash string // bcrypt hash; preferred
	password     string // plain-text fallback
}

// New creates a Sessions service. Exactly one of passwordHash and
// password must be non-empty.
func New(secret string, ttl time.Duration, passwordHash, password string) *Sessions {
	return &Sessions{
		secret:       []byte(secret),
		ttl:          ttl,
		passwordHash: passwordHash,
		password:     password,
	}
}

// VerifyPassword checks the admin password.
func (s *Sessions) VerifyPassword(password string) bool {
	if s.passwordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)) == nil
	}
	if s.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.password), []byte(password)) == 1
}

// Issue creates a signed session token.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "pubfiles",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Validate parses and verifies a session token.
func (s *Sessions) Validate(tokenStr string) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// Authenticated reports whether the request carries a valid session
// cookie.
func (s *Sessions) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return false
	}
	return s.Validate(cookie.Value) == nil
}

// SetCookie attaches a session cookie to the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleLogin handles POST /api/v1/auth/login.
func (s *Sessions) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.VerifyPassword(req.Password) {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, expires, err := s.Issue()
	if err != nil {
		sendAuthError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	metrics.RecordAuthAttempt(true)
	s.SetCookie(w, token, expires)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// HandleLogout handles POST /api/v1/auth/logout.
func (s *Sessions) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.ClearCookie(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// Require wraps a handler, rejecting requests without a valid session
// before the handler runs. Successful requests carry the session mark
// in context for the portal's own gate.
func (s *Sessions) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Authenticated(r) {
			sendAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context())))
	})
}

// WithSession marks ctx as carrying a verified admin session.
func WithSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionContextKey, true)
}

// FromContext reports whether ctx carries a verified admin session.
func FromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(sessionContextKey).(bool)
	return ok
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  code,
	})
}
