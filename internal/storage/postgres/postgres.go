package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social_service/internal/config"
	"social_service/internal/models"
	"social_service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, is_verified, is_logged_in,
		verification_token, otp, otp_expires_at, role, image, friends, friend_requests,
		created_at, updated_at`

type Repo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*Repo, error) {
	const op = "storage.postgres.New"

	dsn := DSN(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &Repo{pool: pool}, nil
}

func (r *Repo) SaveUser(ctx context.Context, username, email string, passHash []byte, role, image string) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, username, email, password_hash, role, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns + `;
	`

	row := r.pool.QueryRow(ctx, query, uuid.New().String(), username, email, string(passHash), role, image)

	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, err
}

func (r *Repo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, err
}

func (r *Repo) SetVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id)

	return err
}

func (r *Repo) SetVerificationToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET verification_token = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, token)

	return err
}

func (r *Repo) SetLoggedIn(ctx context.Context, id string, loggedIn bool) error {
	query := `UPDATE users SET is_logged_in = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, loggedIn)

	return err
}

// SetOTP stores the code and its absolute expiry together; ClearOTP removes
// both. The pair is never half-set.
func (r *Repo) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	query := `UPDATE users SET otp = $2, otp_expires_at = $3, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, code, expiresAt)

	return err
}

func (r *Repo) ClearOTP(ctx context.Context, id string) error {
	query := `UPDATE users SET otp = NULL, otp_expires_at = NULL, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)

	return err
}

func (r *Repo) UpdatePassword(ctx context.Context, id string, passHash []byte) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, string(passHash))

	return err
}

// Users returns every user with the same projection UsersExcept uses.
func (r *Repo) Users(ctx context.Context) ([]models.User, error) {
	const op = "storage.postgres.Users"

	query := `
		SELECT id, username, email, image, friends, friend_requests
		FROM users;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Image, &u.Friends, &u.FriendRequests); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// UsersExcept returns every user but the given one, with enough fields for a
// client to render request/friend state without extra calls.
func (r *Repo) UsersExcept(ctx context.Context, id string) ([]models.User, error) {
	const op = "storage.postgres.UsersExcept"

	query := `
		SELECT id, username, email, image, friends, friend_requests
		FROM users
		WHERE id <> $1;
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Image, &u.Friends, &u.FriendRequests); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// UsersWithRequestFrom returns the users whose friend_requests array contains
// the given id.
func (r *Repo) UsersWithRequestFrom(ctx context.Context, id string) ([]models.User, error) {
	const op = "storage.postgres.UsersWithRequestFrom"

	query := `
		SELECT id, username, email, image
		FROM users
		WHERE $1 = ANY(friend_requests);
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Image); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *Repo) AddFriendRequest(ctx context.Context, targetID, fromID string) error {
	const op = "storage.postgres.AddFriendRequest"

	query := `
		UPDATE users
		SET friend_requests = array_append(friend_requests, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(friend_requests))
	`

	_, err := r.pool.Exec(ctx, query, targetID, fromID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RemoveFriendLinks strips the caller from the target's friends and pending
// requests. Only the target's record is touched.
func (r *Repo) RemoveFriendLinks(ctx context.Context, targetID, callerID string) error {
	const op = "storage.postgres.RemoveFriendLinks"

	query := `
		UPDATE users
		SET friends = array_remove(friends, $2),
			friend_requests = array_remove(friend_requests, $2),
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, targetID, callerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AcceptFriend links both sides in one transaction: the sender moves from the
// caller's friend_requests into friends, and the caller is added to the
// sender's friends.
func (r *Repo) AcceptFriend(ctx context.Context, callerID, senderID string) error {
	const op = "storage.postgres.AcceptFriend"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	callerQuery := `
		UPDATE users
		SET friends = CASE WHEN $2 = ANY(friends) THEN friends ELSE array_append(friends, $2) END,
			friend_requests = array_remove(friend_requests, $2),
			updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, callerQuery, callerID, senderID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	senderQuery := `
		UPDATE users
		SET friends = CASE WHEN $2 = ANY(friends) THEN friends ELSE array_append(friends, $2) END,
			updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, senderQuery, senderID, callerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) RemoveFriendRequest(ctx context.Context, callerID, senderID string) error {
	const op = "storage.postgres.RemoveFriendRequest"

	query := `
		UPDATE users
		SET friend_requests = array_remove(friend_requests, $2), updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, callerID, senderID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PassHash,
		&u.IsVerified,
		&u.IsLoggedIn,
		&u.VerificationToken,
		&u.OTP,
		&u.OTPExpiresAt,
		&u.Role,
		&u.Image,
		&u.Friends,
		&u.FriendRequests,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	return u, nil
}

// DSN builds the connection string from config.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
