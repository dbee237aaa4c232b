// Package auth provides JWT-based authentication for HTTP requests:
// token issuance and verification, an identity-decoding middleware,
// and a guard middleware for routes that require an authenticated user.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/clipr-link/clipr/internal/logger"
	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
)

// Auth issues and verifies session tokens and exposes the HTTP middlewares
// built on top of them.
type Auth struct {
	// signingSecretKey is the key used to sign session tokens.
	signingSecretKey []byte

	// tokenTTL is the absolute lifetime of an issued token.
	tokenTTL time.Duration
}

// Claims represents the JWT claims embedded in a session token.
// It carries the identity the token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Identity is the decoded identity of the requesting user.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// IdentityKey is the context key under which the decoded Identity is stored.
const IdentityKey ContextKey = "identity"

const bearerPrefix = "Bearer"

// New creates an Auth with the given signing secret and token lifetime.
func New(signingSecretKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		signingSecretKey: signingSecretKey,
		tokenTTL:         tokenTTL,
	}
}

// IssueToken produces a signed session token embedding the user's
// id, email and name, expiring tokenTTL from now.
func (a *Auth) IssueToken(usr *user.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: usr.ID,
		Email:  usr.Email,
		Name:   usr.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(a.signingSecretKey)
}

// ParseToken verifies the token signature and expiry and returns the
// embedded identity. It fails on an unexpected signing method, a bad
// signature, or an expired token.
func (a *Auth) ParseToken(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	return &Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

// DecodeIdentity is an HTTP middleware implementing the optional
// identity-extraction step. A request without an Authorization header
// proceeds unauthenticated; a malformed header or a token that fails
// verification is rejected with 400. On success the decoded identity is
// attached to the request context.
func (a *Auth) DecodeIdentity(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		authHeader := request.Header.Get("Authorization")
		if authHeader == "" {
			h.ServeHTTP(response, request)

			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) {
			writeJSONMessage(response, http.StatusBadRequest, "session token must begin with 'Bearer'")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[1] == "" {
			writeJSONMessage(response, http.StatusBadRequest, "invalid token format")
			return
		}

		identity, err := a.ParseToken(parts[1])
		if err != nil {
			logger.Log.Debugln("Error calling the `a.ParseToken()`: ", zap.Error(err))
			writeJSONMessage(response, http.StatusBadRequest, fmt.Sprintf("token verification failed: %v", err))
			return
		}

		ctx := context.WithValue(request.Context(), IdentityKey, identity)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// RequireIdentity is the enforcement step: requests whose context carries no
// identity are rejected with 401.
func (a *Auth) RequireIdentity(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if _, ok := IdentityFromContext(request.Context()); !ok {
			writeJSONMessage(response, http.StatusUnauthorized, "user is not authenticated")
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// IdentityFromContext extracts the decoded identity attached by DecodeIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*Identity)
	return identity, ok && identity != nil
}

func writeJSONMessage(response http.ResponseWriter, status int, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(models.MessageResponse{Message: message}); err != nil {
		logger.Log.Debugln("Error encoding the response body: ", zap.Error(err))
	}
}
