/*
auth.go - Session tokens and actor resolution

PURPOSE:
  Turns a roster login into a signed session token and resolves the acting
  user on every API call. Role checks happen here, before any handler runs.

FLOW:
  1. POST /api/auth/login checks registry number + secret against the roster
  2. A HS256 JWT carrying the user id and role is returned
  3. Authenticated routes read "Authorization: Bearer <token>"
     (the websocket route also accepts ?token=, browsers can't set headers)
  4. The user is re-read from the store, so a role change takes effect
     without waiting for token expiry

SEE ALSO:
  - leave/roster.go: Credential matching
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/leave-portal/leave"
)

type Claims struct {
	UserID  string     `json:"user_id"`
	SicilNo string     `json:"sicil_no"`
	Role    leave.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if issuer == "" {
		issuer = "leave-portal"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// GenerateToken signs a session token for u.
func (tm *TokenManager) GenerateToken(u leave.User) (string, time.Time, error) {
	if u.ID == "" {
		return "", time.Time{}, fmt.Errorf("user id required")
	}
	now := tm.now()
	expires := now.Add(tm.ttl)
	claims := Claims{
		UserID:  u.ID,
		SicilNo: u.SicilNo,
		Role:    u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	return signed, expires, err
}

func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type ctxKey int

const actorKey ctxKey = 0

// Actor returns the authenticated user stored by RequireAuth.
func Actor(ctx context.Context) (leave.User, bool) {
	u, ok := ctx.Value(actorKey).(leave.User)
	return u, ok
}

func withActor(ctx context.Context, u leave.User) context.Context {
	return context.WithValue(ctx, actorKey, u)
}

// RequireAuth resolves the acting user from the bearer token. allowQuery
// also accepts ?token= for websocket upgrades.
func (h *Handler) RequireAuth(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractToken(r.Header.Get("Authorization"))
			if err != nil && allowQuery {
				raw, err = r.URL.Query().Get("token"), nil
			}
			if err != nil || raw == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			claims, err := h.Tokens.ValidateToken(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
				return
			}

			user, err := h.Service.User(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, leave.ErrUserNotFound) {
					writeError(w, http.StatusUnauthorized, "Unknown user", nil)
					return
				}
				h.writeServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), user)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := Actor(r.Context())
		if !ok || !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin role required", leave.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
