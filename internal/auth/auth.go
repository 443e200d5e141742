package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"social_service/internal/config"
	"social_service/internal/lib/jwt"
	sl "social_service/internal/lib/logger"
	"social_service/internal/lib/otp"
	"social_service/internal/lib/verification"
	"social_service/internal/models"
	"social_service/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPassword      = errors.New("wrong password")
	ErrEmailNotVerified   = errors.New("email not verified")
)

type UserSaver interface {
	SaveUser(ctx context.Context, username, email string, passHash []byte, role, image string) (models.User, error)
	SetVerificationToken(ctx context.Context, id, token string) error
	SetVerified(ctx context.Context, id string) error
	SetLoggedIn(ctx context.Context, id string, loggedIn bool) error
	SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passHash []byte) error
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type SessionStore interface {
	Replace(ctx context.Context, userID string) (models.Session, error)
	Delete(ctx context.Context, userID string) error
}

type Metrics interface {
	RecordRegistration()
	RecordLogin()
	RecordEmailPublished(purpose string)
}

type Auth struct {
	log             *slog.Logger
	usrSaver        UserSaver
	usrProvider     UserProvider
	sessions        SessionStore
	publisher       verification.Publisher
	metrics         Metrics
	address         string
	secret          string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	verificationTTL time.Duration
	otpTTL          time.Duration
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	sessions SessionStore,
	publisher verification.Publisher,
	metrics Metrics,
	cfg *config.Config,
) *Auth {
	return &Auth{
		log:             log,
		usrSaver:        userSaver,
		usrProvider:     userProvider,
		sessions:        sessions,
		publisher:       publisher,
		metrics:         metrics,
		address:         cfg.HTTPServer.Address,
		secret:          cfg.Tokens.Secret,
		accessTTL:       cfg.Tokens.AccessTokenTTL,
		refreshTTL:      cfg.Tokens.RefreshTokenTTL,
		verificationTTL: cfg.Tokens.VerificationTokenTTL,
		otpTTL:          cfg.OTP.TTL,
	}
}

// Register creates an unverified user, issues a verification token and hands
// the verification email to the publisher. A delivery failure is logged and
// swallowed so a broken mail pipeline never blocks signups.
func (a *Auth) Register(
	ctx context.Context,
	username, email, password, role, image string,
) (models.User, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	if role == "" {
		role = models.RoleUser
	}
	if image == "" {
		image = models.DefaultImage
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrSaver.SaveUser(ctx, username, email, passHash, role, image)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := jwt.NewToken(user.ID, jwt.PurposeVerification, a.verificationTTL, a.secret)
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := verification.SendVerificationEmail(ctx, a.publisher, a.address, email, token); err != nil {
		log.Error("failed to send verification email", sl.Err(err))
	} else {
		a.metrics.RecordEmailPublished("email_verification")
	}

	if err := a.usrSaver.SetVerificationToken(ctx, user.ID, token); err != nil {
		log.Error("failed to store verification token", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.RecordRegistration()

	log.Info("user registered", slog.String("uid", user.ID))

	return user, nil
}

// Verify consumes a verification token and marks the subject as verified.
// Verifying an already-verified user is a no-op; the returned flag reports
// that case so the caller can word its response.
func (a *Auth) Verify(ctx context.Context, token string) (bool, error) {
	const op = "auth.Verify"

	log := a.log.With(slog.String("op", op))

	userID, purpose, err := jwt.Parse(token, a.secret)
	if err != nil {
		log.Warn("invalid verification token", sl.Err(err))
		return false, err
	}

	if purpose != jwt.PurposeVerification {
		log.Warn("token purpose mismatch", slog.String("purpose", purpose))
		return false, jwt.ErrInvalidToken
	}

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return false, storage.ErrUserNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		log.Info("email already verified", slog.String("uid", user.ID))
		return true, nil
	}

	if err := a.usrSaver.SetVerified(ctx, user.ID); err != nil {
		log.Error("failed to mark user verified", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.String("uid", user.ID))

	return false, nil
}

// Login checks the credentials, replaces any existing session and issues an
// access/refresh token pair. An unknown email and a wrong password surface as
// distinct errors.
func (a *Auth) Login(ctx context.Context, email, password string) (string, string, models.User, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", "", models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return "", "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("password mismatch")
		return "", "", models.User{}, ErrWrongPassword
	}

	if !user.IsVerified {
		return "", "", models.User{}, ErrEmailNotVerified
	}

	if _, err := a.sessions.Replace(ctx, user.ID); err != nil {
		log.Error("failed to replace session", sl.Err(err))
		return "", "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := jwt.NewToken(user.ID, jwt.PurposeAccess, a.accessTTL, a.secret)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := jwt.NewToken(user.ID, jwt.PurposeRefresh, a.refreshTTL, a.secret)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetLoggedIn(ctx, user.ID, true); err != nil {
		log.Error("failed to set login flag", sl.Err(err))
		return "", "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.RecordLogin()

	log.Info("user logged in", slog.String("uid", user.ID))

	return accessToken, refreshToken, user, nil
}

// Logout drops the caller's session and clears the login flag. Safe to call
// when no session exists.
func (a *Auth) Logout(ctx context.Context, userID string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if err := a.sessions.Delete(ctx, userID); err != nil {
		log.Error("failed to delete session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetLoggedIn(ctx, userID, false); err != nil {
		log.Error("failed to clear login flag", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out", slog.String("uid", userID))

	return nil
}

// ForgotPassword stores a fresh OTP on the user and emails it. Unlike
// registration, a delivery failure here is surfaced to the caller: without
// the code the reset flow is dead in the water.
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := otp.Generate()
	if err != nil {
		log.Error("failed to generate otp", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetOTP(ctx, user.ID, code, time.Now().Add(a.otpTTL)); err != nil {
		log.Error("failed to store otp", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := verification.SendOTPEmail(ctx, a.publisher, email, code); err != nil {
		log.Error("failed to send otp email", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.RecordEmailPublished("password_reset")

	log.Info("otp sent", slog.String("uid", user.ID))

	return nil
}

// VerifyOTP checks the submitted code and clears the stored pair on success,
// making each code single-use.
func (a *Auth) VerifyOTP(ctx context.Context, email, submitted string) error {
	const op = "auth.VerifyOTP"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := otp.Verify(user.OTP, user.OTPExpiresAt, submitted, time.Now()); err != nil {
		return err
	}

	if err := a.usrSaver.ClearOTP(ctx, user.ID); err != nil {
		log.Error("failed to clear otp", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("otp verified", slog.String("uid", user.ID))

	return nil
}

// ChangePassword re-hashes and stores a new password. It is not linked to a
// prior VerifyOTP call; the two steps are independent requests.
func (a *Auth) ChangePassword(ctx context.Context, email, newPassword string) error {
	const op = "auth.ChangePassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdatePassword(ctx, user.ID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.String("uid", user.ID))

	return nil
}
