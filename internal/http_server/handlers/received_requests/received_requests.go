package receivedRequests

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"social_service/internal/friends"
	resp "social_service/internal/lib/api/response"
	sl "social_service/internal/lib/logger"
	"social_service/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Sender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Image    string `json:"image"`
}

type Response struct {
	resp.Response
	Data []Sender `json:"data"`
}

// New lists the users holding a pending request from the caller.
func New(
	log *slog.Logger,
	friendService *friends.Friends,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.receivedRequests.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		users, err := friendService.Received(ctx, callerID)
		if err != nil {
			log.Error("failed to list received requests", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		data := make([]Sender, 0, len(users))
		for _, u := range users {
			data = append(data, Sender{
				ID:       u.ID,
				Username: u.Username,
				Email:    u.Email,
				Image:    u.Image,
			})
		}

		render.JSON(w, r, Response{
			Response: resp.OK(""),
			Data:     data,
		})
	}
}
