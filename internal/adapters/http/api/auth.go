package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in bearer tokens. Each maps to one client kind.
const (
	RoleAdmin    = "admin"
	RoleJudge    = "judge"
	RoleVR       = "vr"
	RoleSequence = "sequence"
	RoleAudience = "audience"
)

// Claims identifies the caller. Seat is set for judge tokens only and
// EventID scopes non-admin tokens to one event.
type Claims struct {
	UserID  string `json:"uid"`
	Role    string `json:"role"`
	Seat    int    `json:"seat,omitempty"`
	EventID string `json:"event_id,omitempty"`
	jwt.RegisteredClaims
}

type claimsKeyType string

const ctxClaimsKey claimsKeyType = "claims"

// Auth issues and verifies HS256 bearer tokens.
type Auth struct {
	key []byte
	ttl time.Duration
}

// NewAuth creates an Auth using the given signing secret.
func NewAuth(secret string) *Auth {
	return &Auth{key: []byte(secret), ttl: 24 * time.Hour}
}

// GenerateToken signs a token for the given identity.
func (a *Auth) GenerateToken(c Claims) (string, error) {
	c.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	return token.SignedString(a.key)
}

// ValidateToken parses and verifies a token string.
func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, errors.New("invalid token signature")
		}
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Require validates the bearer token and, when roles are given, checks
// the caller holds one of them. Claims land in the request context.
func (a *Auth) Require(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			// SSE clients cannot set headers; accept ?token= as fallback.
			if t := r.URL.Query().Get("token"); t != "" {
				header = "Bearer " + t
			}
		}
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("missing bearer token"))
			return
		}
		claims, err := a.ValidateToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			writeError(w, http.StatusForbidden, "forbidden", errors.New("role not allowed"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// ClaimsFromContext returns the verified claims stored by Require.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ctxClaimsKey).(*Claims)
	return claims
}
