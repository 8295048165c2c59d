// Package middleware provides authentication middleware.
package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/postforge/postforge/internal/auth/jwt"
	"github.com/postforge/postforge/internal/shared/errors"
	"github.com/postforge/postforge/internal/shared/logger"
)

// userContextKey is the context key for the authenticated user.
type userContextKey struct{}

// UserInfo represents the authenticated user carried through the request
// context.
type UserInfo struct {
	ID    uuid.UUID
	Email string
}

// Auth returns middleware that validates bearer tokens and rejects requests
// without a valid one.
func Auth(manager *jwt.Manager, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				log.WithContext(r.Context()).WithError(err).Warn("authentication failed",
					"path", r.URL.Path,
				)
				writeAuthError(w, err)
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				writeAuthError(w, errors.TokenInvalid("token subject is not a valid user id"))
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, &UserInfo{
				ID:    userID,
				Email: claims.Email,
			})
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserInfo extracts the authenticated user from the request context.
func GetUserInfo(ctx context.Context) *UserInfo {
	if info, ok := ctx.Value(userContextKey{}).(*UserInfo); ok {
		return info
	}
	return nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthorized("missing authorization header")
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", errors.Unauthorized("authorization header must be a bearer token")
	}
	return token, nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) {
		appErr = errors.Unauthorized(err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatusCode())
	json.NewEncoder(w).Encode(map[string]any{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}
