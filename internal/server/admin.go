package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mdddj/blog-new/internal/httputil"
	"golang.org/x/crypto/bcrypt"
)

const adminSubject = "blogdata-admin"

// adminAuth handles password login for the admin data endpoints. Tokens are
// HS256 JWTs; with no configured secret a random per-boot one is used, so
// restarting the server invalidates every token.
type adminAuth struct {
	password string // plain text or a bcrypt hash
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func newAdminAuth(password, secret string, ttl time.Duration) *adminAuth {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &adminAuth{password: password, secret: key, ttl: ttl, now: time.Now}
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func (a *adminAuth) validatePassword(password string) bool {
	if isBcryptHash(a.password) {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

func (a *adminAuth) token() (string, time.Time, error) {
	now := a.now()
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", time.Time{}, fmt.Errorf("generating jti: %w", err)
	}
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        hex.EncodeToString(jti),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

func (a *adminAuth) validateToken(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithSubject(adminSubject), jwt.WithExpirationRequired(), jwt.WithTimeFunc(a.now))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// handleAdminStatus returns whether admin authentication is required.
func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{
		"auth": s.adminAuth != nil,
	})
}

// handleAdminLogin validates the admin password and returns a token.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.adminAuth == nil {
		httputil.WriteError(w, http.StatusNotFound, "admin auth not configured")
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}

	if !s.adminAuth.validatePassword(body.Password) {
		s.logger.Warn("admin login failed", "remote", r.RemoteAddr)
		httputil.WriteError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, expires, err := s.adminAuth.token()
	if err != nil {
		s.logger.Error("issuing admin token", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expires.UTC(),
	})
}

// requireAdminToken returns middleware that requires a valid admin token.
// When no admin password is set, all requests pass through.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminAuth == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := httputil.ExtractBearerToken(r)
		if !ok {
			httputil.WriteError(w, http.StatusUnauthorized, "admin authentication required")
			return
		}
		if err := s.adminAuth.validateToken(token); err != nil {
			s.logger.Debug("admin token rejected", "error", err)
			httputil.WriteError(w, http.StatusUnauthorized, "admin authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
