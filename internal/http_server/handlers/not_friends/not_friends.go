package notFriends

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

type Candidate struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	Image          string   `json:"image"`
	FriendRequests []string `json:"friend_requests"`
	Friends        []string `json:"friends"`
}

type Response struct {
	resp.Response
	Data []Candidate `json:"data"`
}

// New lists every user except the caller, with relationship state included so
// the client can render request/friend buttons without extra calls.
func New(
	log *slog.Logger,
	friendService *friends.Friends,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notFriends.New"

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

		users, err := friendService.Candidates(ctx, callerID)
		if err != nil {
			log.Error("failed to list candidates", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		data := make([]Candidate, 0, len(users))
		for _, u := range users {
			data = append(data, Candidate{
				ID:             u.ID,
				Username:       u.Username,
				Email:          u.Email,
				Image:          u.Image,
				FriendRequests: u.FriendRequests,
				Friends:        u.Friends,
			})
		}

		render.JSON(w, r, Response{
			Response: resp.OK(""),
			Data:     data,
		})
	}
}
