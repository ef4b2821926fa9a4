// Package auth issues and verifies the bearer tokens used by the API.
// Tokens are HMAC-SHA256 signed JSON claims (base64 payload "." base64 sig),
// carrying the principal's id, role, trainer linkage, and display name so the
// client can act on them without an extra round trip. Cryptographic details
// stay inside this package; the rest of the app only sees Claims.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const claimsCtxKey = ctxKey("claims")

// Token types and lifetimes.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	AccessTTL  = 30 * time.Minute
	RefreshTTL = 14 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the signed token payload.
type Claims struct {
	UserID    uint   `json:"uid"`
	Role      string `json:"role"`
	TrainerID *uint  `json:"trainer_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"typ"`
	ID        string `json:"jti"`
	ExpiresAt int64  `json:"exp"`
}

// UserVerifier is an optional callback to confirm a token's user still exists
// and is active. Set during app bootstrap via SetUserVerifier; nil skips the
// check.
type UserVerifier func(ctx context.Context, uid uint) bool

var verifier UserVerifier

// SetUserVerifier configures the global verifier used by RequireAuth.
func SetUserVerifier(v UserVerifier) { verifier = v }

// Secret returns AUTH_SECRET or a default dev value.
func Secret() string {
	if s := os.Getenv("AUTH_SECRET"); s != "" {
		return s
	}
	return "devauthsecret"
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue signs claims as a token of the given type with the given lifetime.
// A fresh jti is assigned on every call.
func Issue(c Claims, typ string, ttl time.Duration) (string, error) {
	c.Type = typ
	c.ID = uuid.NewString()
	c.ExpiresAt = time.Now().Add(ttl).Unix()
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + sign(payload), nil
}

// IssuePair returns an access and a refresh token for the same claims.
func IssuePair(c Claims) (access, refresh string, err error) {
	if access, err = Issue(c, TypeAccess, AccessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = Issue(c, TypeRefresh, RefreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Parse verifies the signature and expiry and returns the claims.
func Parse(token string) (Claims, error) {
	var c Claims
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return c, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return c, ErrInvalidToken
	}
	if !hmac.Equal([]byte(parts[1]), []byte(sign(payload))) {
		return c, ErrInvalidToken
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, ErrInvalidToken
	}
	if time.Now().Unix() >= c.ExpiresAt {
		return c, ErrTokenExpired
	}
	return c, nil
}

// WithClaims stores claims in context.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// ClaimsFromContext extracts the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(Claims)
	return c, ok
}

// UserIDFromContext extracts the authenticated user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return c.UserID, true
}

// BearerToken pulls the token out of the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// Middleware attaches verified access-token claims to the request context.
// Invalid or refresh-typed tokens are ignored here; RequireAuth decides.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := BearerToken(r); ok {
			if c, err := Parse(token); err == nil && c.Type == TypeAccess {
				r = r.WithContext(WithClaims(r.Context(), c))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a valid access token with 401 JSON.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}
		if verifier != nil && !verifier(r.Context(), c.UserID) {
			// Token refers to a deleted or disabled user.
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
