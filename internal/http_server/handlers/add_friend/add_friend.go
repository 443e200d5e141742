package addFriend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"social_service/internal/friends"
	resp "social_service/internal/lib/api/response"
	sl "social_service/internal/lib/logger"
	"social_service/internal/middleware/authn"
	"social_service/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

func New(
	log *slog.Logger,
	friendService *friends.Friends,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.addFriend.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		callerID, ok := authn.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Token missing or invalid"))

			return
		}

		targetID := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := friendService.SendRequest(ctx, callerID, targetID); err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))
			case errors.Is(err, friends.ErrSelfLink):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("You cannot send a friend request to yourself"))
			case errors.Is(err, friends.ErrAlreadyLinked):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Friend request already sent or already friends"))
			default:
				log.Error("failed to send friend request", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("friend request sent")

		render.JSON(w, r, Response{
			Response: resp.OK("Friend request sent"),
		})
	}
}
