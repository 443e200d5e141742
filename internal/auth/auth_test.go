package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"social_service/internal/auth"
	"social_service/internal/config"
	"social_service/internal/lib/jwt"
	"social_service/internal/lib/otp"
	"social_service/internal/metrics"
	"social_service/internal/models"
	"social_service/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- fakes ---

type fakeRepo struct {
	users map[string]*models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*models.User)}
}

func (f *fakeRepo) SaveUser(_ context.Context, username, email string, passHash []byte, role, image string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return models.User{}, storage.ErrUserExists
		}
	}

	u := &models.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
		PassHash: passHash,
		Role:     role,
		Image:    image,
	}
	f.users[u.ID] = u

	return *u, nil
}

func (f *fakeRepo) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeRepo) UserByID(_ context.Context, id string) (models.User, error) {
	if u, ok := f.users[id]; ok {
		return *u, nil
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeRepo) SetVerificationToken(_ context.Context, id, token string) error {
	f.users[id].VerificationToken = &token
	return nil
}

func (f *fakeRepo) SetVerified(_ context.Context, id string) error {
	f.users[id].IsVerified = true
	f.users[id].VerificationToken = nil
	return nil
}

func (f *fakeRepo) SetLoggedIn(_ context.Context, id string, loggedIn bool) error {
	f.users[id].IsLoggedIn = loggedIn
	return nil
}

func (f *fakeRepo) SetOTP(_ context.Context, id, code string, expiresAt time.Time) error {
	f.users[id].OTP = &code
	f.users[id].OTPExpiresAt = &expiresAt
	return nil
}

func (f *fakeRepo) ClearOTP(_ context.Context, id string) error {
	f.users[id].OTP = nil
	f.users[id].OTPExpiresAt = nil
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, id string, passHash []byte) error {
	f.users[id].PassHash = passHash
	return nil
}

type fakeSessions struct {
	active map[string]models.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: make(map[string]models.Session)}
}

func (f *fakeSessions) Replace(_ context.Context, userID string) (models.Session, error) {
	delete(f.active, userID)
	s := models.Session{ID: uuid.New().String(), UserID: userID, CreatedAt: time.Now()}
	f.active[userID] = s
	return s, nil
}

func (f *fakeSessions) Delete(_ context.Context, userID string) error {
	delete(f.active, userID)
	return nil
}

type fakePublisher struct {
	msgs []models.Message
	err  error
}

func (f *fakePublisher) SendMessage(_ context.Context, msg models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPServer: config.HTTPServer{Address: "localhost:8080"},
		Tokens: config.Tokens{
			AccessTokenTTL:       240 * time.Hour,
			RefreshTokenTTL:      720 * time.Hour,
			VerificationTokenTTL: 240 * time.Hour,
			Secret:               testSecret,
		},
		OTP: config.OTP{TTL: 10 * time.Minute},
	}
}

func newTestAuth(repo *fakeRepo, sessions *fakeSessions, pub *fakePublisher) *auth.Auth {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.NewCollector(prometheus.NewRegistry())

	return auth.New(log, repo, repo, sessions, pub, collector, testConfig())
}

func registerVerified(t *testing.T, a *auth.Auth, repo *fakeRepo, email, password string) models.User {
	t.Helper()

	user, err := a.Register(context.Background(), "alice", email, password, "", "")
	require.NoError(t, err)

	repo.users[user.ID].IsVerified = true

	return user
}

// --- tests ---

func TestRegister(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	a := newTestAuth(repo, newFakeSessions(), pub)

	user, err := a.Register(context.Background(), "alice", "a@x.com", "secret1", "", "")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsVerified)
	assert.Equal(t, models.RoleUser, repo.users[user.ID].Role)
	assert.Equal(t, models.DefaultImage, repo.users[user.ID].Image)

	require.NotNil(t, repo.users[user.ID].VerificationToken)

	subject, purpose, err := jwt.Parse(*repo.users[user.ID].VerificationToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
	assert.Equal(t, jwt.PurposeVerification, purpose)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "a@x.com", pub.msgs[0].Email)
	assert.Contains(t, pub.msgs[0].Link, "/verify-email?token=")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})

	_, err := a.Register(context.Background(), "alice", "a@x.com", "secret1", "", "")
	require.NoError(t, err)

	_, err = a.Register(context.Background(), "alice2", "a@x.com", "secret2", "", "")
	assert.ErrorIs(t, err, auth.ErrUserExists)
	assert.Len(t, repo.users, 1)
}

func TestRegisterEmailFailureSwallowed(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{err: errors.New("smtp down")}
	a := newTestAuth(repo, newFakeSessions(), pub)

	user, err := a.Register(context.Background(), "alice", "a@x.com", "secret1", "", "")
	require.NoError(t, err)
	assert.NotNil(t, repo.users[user.ID].VerificationToken)
}

func TestVerify(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})

	user, err := a.Register(context.Background(), "alice", "a@x.com", "secret1", "", "")
	require.NoError(t, err)

	token := *repo.users[user.ID].VerificationToken

	alreadyVerified, err := a.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, alreadyVerified)
	assert.True(t, repo.users[user.ID].IsVerified)
	assert.Nil(t, repo.users[user.ID].VerificationToken)

	// idempotent second consumption
	alreadyVerified, err = a.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, alreadyVerified)
}

func TestVerifyRejectsAccessToken(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})

	token, err := jwt.NewToken("someone", jwt.PurposeAccess, time.Hour, testSecret)
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestVerifyGarbageToken(t *testing.T) {
	a := newTestAuth(newFakeRepo(), newFakeSessions(), &fakePublisher{})

	_, err := a.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestLoginUnknownEmail(t *testing.T) {
	a := newTestAuth(newFakeRepo(), newFakeSessions(), &fakePublisher{})

	_, _, _, err := a.Login(context.Background(), "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})
	registerVerified(t, a, repo, "a@x.com", "secret1")

	_, _, _, err := a.Login(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrWrongPassword)
}

func TestLoginUnverified(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})

	_, err := a.Register(context.Background(), "alice", "a@x.com", "secret1", "", "")
	require.NoError(t, err)

	_, _, _, err = a.Login(context.Background(), "a@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrEmailNotVerified)
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeRepo()
	sessions := newFakeSessions()
	a := newTestAuth(repo, sessions, &fakePublisher{})
	user := registerVerified(t, a, repo, "a@x.com", "secret1")

	accessToken, refreshToken, loggedIn, err := a.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, user.ID, loggedIn.ID)
	assert.True(t, repo.users[user.ID].IsLoggedIn)
	assert.Len(t, sessions.active, 1)

	subject, purpose, err := jwt.Parse(accessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
	assert.Equal(t, jwt.PurposeAccess, purpose)

	subject, purpose, err = jwt.Parse(refreshToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
	assert.Equal(t, jwt.PurposeRefresh, purpose)
}

func TestLoginTwiceLeavesOneSession(t *testing.T) {
	repo := newFakeRepo()
	sessions := newFakeSessions()
	a := newTestAuth(repo, sessions, &fakePublisher{})
	user := registerVerified(t, a, repo, "a@x.com", "secret1")

	_, _, _, err := a.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	first := sessions.active[user.ID]

	_, _, _, err = a.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Len(t, sessions.active, 1)
	assert.NotEqual(t, first.ID, sessions.active[user.ID].ID)
}

func TestLogout(t *testing.T) {
	repo := newFakeRepo()
	sessions := newFakeSessions()
	a := newTestAuth(repo, sessions, &fakePublisher{})
	user := registerVerified(t, a, repo, "a@x.com", "secret1")

	_, _, _, err := a.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, a.Logout(context.Background(), user.ID))
	assert.Empty(t, sessions.active)
	assert.False(t, repo.users[user.ID].IsLoggedIn)

	// logging out again is fine
	require.NoError(t, a.Logout(context.Background(), user.ID))
}

func TestForgotPassword(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	a := newTestAuth(repo, newFakeSessions(), pub)
	user := registerVerified(t, a, repo, "a@x.com", "secret1")
	pub.msgs = nil

	require.NoError(t, a.ForgotPassword(context.Background(), "a@x.com"))

	stored := repo.users[user.ID]
	require.NotNil(t, stored.OTP)
	require.NotNil(t, stored.OTPExpiresAt)
	assert.Len(t, *stored.OTP, 6)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *stored.OTPExpiresAt, time.Minute)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, *stored.OTP, pub.msgs[0].Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	a := newTestAuth(newFakeRepo(), newFakeSessions(), &fakePublisher{})

	err := a.ForgotPassword(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestForgotPasswordEmailFailurePropagates(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})
	registerVerified(t, a, repo, "a@x.com", "secret1")

	pubErr := errors.New("broker down")
	failing := newTestAuth(repo, newFakeSessions(), &fakePublisher{err: pubErr})

	err := failing.ForgotPassword(context.Background(), "a@x.com")
	assert.Error(t, err)
}

func TestVerifyOTP(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})
	user := registerVerified(t, a, repo, "a@x.com", "secret1")

	t.Run("not generated", func(t *testing.T) {
		err := a.VerifyOTP(context.Background(), "a@x.com", "123456")
		assert.ErrorIs(t, err, otp.ErrNotGenerated)
	})

	require.NoError(t, a.ForgotPassword(context.Background(), "a@x.com"))
	code := *repo.users[user.ID].OTP

	t.Run("mismatch", func(t *testing.T) {
		err := a.VerifyOTP(context.Background(), "a@x.com", "000000")
		assert.ErrorIs(t, err, otp.ErrMismatch)
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		repo.users[user.ID].OTPExpiresAt = &past

		err := a.VerifyOTP(context.Background(), "a@x.com", code)
		assert.ErrorIs(t, err, otp.ErrExpired)

		future := time.Now().Add(10 * time.Minute)
		repo.users[user.ID].OTPExpiresAt = &future
	})

	t.Run("success clears the pair", func(t *testing.T) {
		require.NoError(t, a.VerifyOTP(context.Background(), "a@x.com", code))
		assert.Nil(t, repo.users[user.ID].OTP)
		assert.Nil(t, repo.users[user.ID].OTPExpiresAt)
	})

	t.Run("single use", func(t *testing.T) {
		err := a.VerifyOTP(context.Background(), "a@x.com", code)
		assert.ErrorIs(t, err, otp.ErrNotGenerated)
	})
}

func TestChangePassword(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAuth(repo, newFakeSessions(), &fakePublisher{})
	user := registerVerified(t, a, repo, "a@x.com", "secret1")

	require.NoError(t, a.ChangePassword(context.Background(), "a@x.com", "newsecret"))

	assert.NoError(t, bcrypt.CompareHashAndPassword(repo.users[user.ID].PassHash, []byte("newsecret")))
	assert.Error(t, bcrypt.CompareHashAndPassword(repo.users[user.ID].PassHash, []byte("secret1")))
}

func TestChangePasswordUnknownEmail(t *testing.T) {
	a := newTestAuth(newFakeRepo(), newFakeSessions(), &fakePublisher{})

	err := a.ChangePassword(context.Background(), "nobody@x.com", "newsecret")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
