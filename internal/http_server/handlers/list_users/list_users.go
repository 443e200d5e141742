package listUsers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"social_service/internal/friends"
	resp "social_service/internal/lib/api/response"
	sl "social_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type User struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	Image          string   `json:"image"`
	Friends        []string `json:"friends"`
	FriendRequests []string `json:"friend_requests"`
}

type Response struct {
	resp.Response
	Data []User `json:"data"`
}

// New lists every user, the caller included. Admin-only; mounted behind the
// role gate.
func New(
	log *slog.Logger,
	friendService *friends.Friends,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listUsers.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		users, err := friendService.List(ctx)
		if err != nil {
			log.Error("failed to list users", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		data := make([]User, 0, len(users))
		for _, u := range users {
			data = append(data, User{
				ID:             u.ID,
				Username:       u.Username,
				Email:          u.Email,
				Image:          u.Image,
				Friends:        u.Friends,
				FriendRequests: u.FriendRequests,
			})
		}

		render.JSON(w, r, Response{
			Response: resp.OK(""),
			Data:     data,
		})
	}
}
