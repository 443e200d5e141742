// Package authn resolves the caller's identity from a bearer token before
// workflow handlers run.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	resp "social_service/internal/lib/api/response"
	"social_service/internal/lib/jwt"
	sl "social_service/internal/lib/logger"
	"social_service/internal/models"
	"social_service/internal/storage"

	"github.com/go-chi/render"
)

type contextKey struct{}

var userIDKey contextKey

// UserID returns the authenticated caller id attached by Authenticate.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// WithUserID is exported for tests that exercise handlers behind the gate.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

type UserProvider interface {
	UserByID(ctx context.Context, id string) (models.User, error)
}

// Authenticate rejects requests without a valid bearer access token and puts
// the subject user id on the request context.
func Authenticate(log *slog.Logger, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.Authenticate"

			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Token missing or invalid"))

				return
			}

			token := strings.TrimPrefix(header, "Bearer ")

			userID, purpose, err := jwt.Parse(token, secret)
			if err != nil || purpose != jwt.PurposeAccess {
				log.Warn("invalid access token", slog.String("op", op))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Token verification failed or expired"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequireAdmin loads the caller's record and rejects non-admins. Must run
// after Authenticate.
func RequireAdmin(log *slog.Logger, provider UserProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.RequireAdmin"

			userID, ok := UserID(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Token missing or invalid"))

				return
			}

			user, err := provider.UserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					render.Status(r, http.StatusNotFound)
					render.JSON(w, r, resp.Error("User not found"))

					return
				}

				log.Error("failed to load user", slog.String("op", op), sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}

			if user.Role != models.RoleAdmin {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("Access denied"))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
