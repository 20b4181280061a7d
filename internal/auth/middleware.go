package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/farm-fresh-api/internal/httputil"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey    ContextKey = "user_id"
	UserEmailContextKey ContextKey = "user_email"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	tokenService TokenService
}

func NewMiddleware(tokenService TokenService) *Middleware {
	return &Middleware{tokenService: tokenService}
}

// RequireAuth rejects requests without a valid bearer token
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			httputil.RespondErrorWithCode(w, "Missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}
		m.authenticate(w, r, next)
	})
}

// OptionalAuth passes through requests without an Authorization header.
// A header that is present must carry a valid token.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		m.authenticate(w, r, next)
	})
}

func (m *Middleware) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		httputil.RespondErrorWithCode(w, "Invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
		return
	}

	claims, err := m.tokenService.VerifyToken(parts[1])
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			httputil.RespondErrorWithCode(w, "Token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
			return
		}
		httputil.RespondErrorWithCode(w, "Invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		httputil.RespondErrorWithCode(w, "Invalid user ID in token", httputil.CodeInvalidTokenUserID, http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
	ctx = context.WithValue(ctx, UserEmailContextKey, claims.Email)

	next.ServeHTTP(w, r.WithContext(ctx))
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetUserEmailFromContext extracts the user email from the request context
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailContextKey).(string)
	return email, ok
}
