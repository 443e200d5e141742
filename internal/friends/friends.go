// Package friends implements the friend-request workflow. A request lives
// only on the target's record; a friendship is mutual entries in both users'
// friends arrays.
package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	sl "social_service/internal/lib/logger"
	"social_service/internal/models"
	"social_service/internal/storage"
)

var (
	ErrAlreadyLinked = errors.New("already requested or already friends")
	ErrSelfLink      = errors.New("cannot friend yourself")
)

type UserProvider interface {
	UserByID(ctx context.Context, id string) (models.User, error)
	Users(ctx context.Context) ([]models.User, error)
	UsersExcept(ctx context.Context, id string) ([]models.User, error)
	UsersWithRequestFrom(ctx context.Context, id string) ([]models.User, error)
}

type FriendshipUpdater interface {
	AddFriendRequest(ctx context.Context, targetID, fromID string) error
	RemoveFriendLinks(ctx context.Context, targetID, callerID string) error
	AcceptFriend(ctx context.Context, callerID, senderID string) error
	RemoveFriendRequest(ctx context.Context, callerID, senderID string) error
}

type Metrics interface {
	RecordFriendRequest()
	RecordFriendAccept()
}

type Friends struct {
	log      *slog.Logger
	provider UserProvider
	updater  FriendshipUpdater
	metrics  Metrics
}

func New(log *slog.Logger, provider UserProvider, updater FriendshipUpdater, metrics Metrics) *Friends {
	return &Friends{
		log:      log,
		provider: provider,
		updater:  updater,
		metrics:  metrics,
	}
}

// Candidates returns every user except the caller, with friends and pending
// requests included so clients can render relationship state locally.
func (f *Friends) Candidates(ctx context.Context, callerID string) ([]models.User, error) {
	const op = "friends.Candidates"

	users, err := f.provider.UsersExcept(ctx, callerID)
	if err != nil {
		f.log.Error("failed to list users", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// List returns every user including the caller. Admin listing, not a
// candidate feed.
func (f *Friends) List(ctx context.Context) ([]models.User, error) {
	const op = "friends.List"

	users, err := f.provider.Users(ctx)
	if err != nil {
		f.log.Error("failed to list all users", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// SendRequest records the caller on the target's pending list. A repeat
// request, or a request to an existing friend, is a client error rather than
// a silent no-op.
func (f *Friends) SendRequest(ctx context.Context, callerID, targetID string) error {
	const op = "friends.SendRequest"

	log := f.log.With(slog.String("op", op))

	if callerID == targetID {
		return ErrSelfLink
	}

	target, err := f.provider.UserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to load target", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if slices.Contains(target.FriendRequests, callerID) || slices.Contains(target.Friends, callerID) {
		return ErrAlreadyLinked
	}

	if err := f.updater.AddFriendRequest(ctx, targetID, callerID); err != nil {
		log.Error("failed to add friend request", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	f.metrics.RecordFriendRequest()

	log.Info("friend request sent",
		slog.String("from", callerID),
		slog.String("to", targetID),
	)

	return nil
}

// Remove strips the caller from the target's friends and pending requests,
// covering both withdrawing a request and unfriending. The caller's own
// record is intentionally left untouched to match the reference behavior.
func (f *Friends) Remove(ctx context.Context, callerID, targetID string) error {
	const op = "friends.Remove"

	log := f.log.With(slog.String("op", op))

	if _, err := f.provider.UserByID(ctx, targetID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to load target", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.updater.RemoveFriendLinks(ctx, targetID, callerID); err != nil {
		log.Error("failed to remove friend links", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("friend links removed",
		slog.String("caller", callerID),
		slog.String("target", targetID),
	)

	return nil
}

// Received lists the users whose pending requests contain the caller.
func (f *Friends) Received(ctx context.Context, callerID string) ([]models.User, error) {
	const op = "friends.Received"

	users, err := f.provider.UsersWithRequestFrom(ctx, callerID)
	if err != nil {
		f.log.Error("failed to list received requests", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// Accept turns a pending request into a mutual friendship. Both records are
// updated in a single storage transaction so a crash cannot leave a
// one-directional friendship.
func (f *Friends) Accept(ctx context.Context, callerID, senderID string) error {
	const op = "friends.Accept"

	log := f.log.With(slog.String("op", op))

	// No request to self can legitimately exist; guarding here keeps a user's
	// own id out of their friends array even on a crafted body.
	if callerID == senderID {
		return ErrSelfLink
	}

	if _, err := f.provider.UserByID(ctx, senderID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to load sender", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.updater.AcceptFriend(ctx, callerID, senderID); err != nil {
		log.Error("failed to accept friend request", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	f.metrics.RecordFriendAccept()

	log.Info("friend request accepted",
		slog.String("caller", callerID),
		slog.String("sender", senderID),
	)

	return nil
}

// Reject drops the sender from the caller's pending requests.
func (f *Friends) Reject(ctx context.Context, callerID, senderID string) error {
	const op = "friends.Reject"

	log := f.log.With(slog.String("op", op))

	if err := f.updater.RemoveFriendRequest(ctx, callerID, senderID); err != nil {
		log.Error("failed to reject friend request", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("friend request rejected",
		slog.String("caller", callerID),
		slog.String("sender", senderID),
	)

	return nil
}
