package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social_service/internal/models"
	"social_service/internal/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps at most one session per user, keyed by user id. Creating
// a session replaces whatever was there.
type SessionStore struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*SessionStore, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SessionStore{
		client: client,
	}, nil
}

// Replace deletes any existing session for the user and creates a fresh one.
// Both commands go out in one pipeline.
func (s *SessionStore) Replace(ctx context.Context, userID string) (models.Session, error) {
	const op = "storage.redis.Replace"

	session := models.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	key := sessionKey(userID)

	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Set(ctx, key, data, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return session, nil
}

// Delete removes the user's session. Deleting a missing session is not an
// error.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	const op = "storage.redis.Delete"

	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *SessionStore) Get(ctx context.Context, userID string) (models.Session, error) {
	const op = "storage.redis.Get"

	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, storage.ErrSessionNotFound
		}

		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return session, nil
}

func (s *SessionStore) Close() {
	s.client.Close()
}

func sessionKey(userID string) string {
	return fmt.Sprintf("session:%s", userID)
}
