package verifyEmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"social_service/internal/auth"
	resp "social_service/internal/lib/api/response"
	"social_service/internal/lib/jwt"
	sl "social_service/internal/lib/logger"
	"social_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

// New consumes the bearer verification token from the Authorization header.
func New(
	log *slog.Logger,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verifyEmail.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			log.Warn("missing verification token")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Token missing or invalid"))

			return
		}

		token := strings.TrimPrefix(header, "Bearer ")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		alreadyVerified, err := authService.Verify(ctx, token)
		if err != nil {
			if errors.Is(err, jwt.ErrInvalidToken) || errors.Is(err, jwt.ErrTokenExpired) {
				log.Warn("invalid verification token", sl.Err(err))

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Token verification failed or expired"))

				return
			}
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))

				return
			}

			log.Error("failed to verify email", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		msg := "Email verified successfully"
		if alreadyVerified {
			msg = "Email already verified"
		}

		render.JSON(w, r, Response{
			Response: resp.OK(msg),
		})
	}
}
