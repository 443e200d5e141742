package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social_service/internal/auth"
	"social_service/internal/config"
	"social_service/internal/friends"
	acceptRequest "social_service/internal/http_server/handlers/accept_request"
	addFriend "social_service/internal/http_server/handlers/add_friend"
	changePassword "social_service/internal/http_server/handlers/change_password"
	forgotPassword "social_service/internal/http_server/handlers/forgot_password"
	listUsers "social_service/internal/http_server/handlers/list_users"
	"social_service/internal/http_server/handlers/login"
	"social_service/internal/http_server/handlers/logout"
	notFriends "social_service/internal/http_server/handlers/not_friends"
	receivedRequests "social_service/internal/http_server/handlers/received_requests"
	"social_service/internal/http_server/handlers/register"
	rejectRequest "social_service/internal/http_server/handlers/reject_request"
	removeFriend "social_service/internal/http_server/handlers/remove_friend"
	verifyEmail "social_service/internal/http_server/handlers/verify_email"
	verifyOTP "social_service/internal/http_server/handlers/verify_otp"
	"social_service/internal/lib/verification"
	"social_service/internal/mailer"
	"social_service/internal/metrics"
	"social_service/internal/middleware/authn"
	"social_service/internal/middleware/ratelimit"
	"social_service/internal/rabbitmq"
	"social_service/internal/storage/postgres"
	sessionstore "social_service/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting social service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	if err := postgres.RunMigrations(ctx, postgres.DSN(cfg)); err != nil {
		log.Error("failed to run migrations", slog.String("err", err.Error()))
		os.Exit(1)
	}

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	sessions, err := sessionstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer sessions.Close()

	var publisher verification.Publisher
	if cfg.Mailer.Mode == "smtp" {
		publisher = mailer.New(cfg.SMTP)
	} else {
		msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer msgBroker.Close()
		publisher = msgBroker
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService := auth.New(log, storage, storage, sessions, publisher, collector, cfg)
	friendService := friends.New(log, storage, storage, collector)

	router := setupRouter(log, cfg, authService, friendService, storage, registry)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	friendService *friends.Friends,
	userProvider authn.UserProvider,
	registry *prometheus.Registry,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.With(ratelimit.Register()).Post("/register",
		register.New(log, validate, authService),
	)
	r.With(ratelimit.Verify()).Get("/verify-email",
		verifyEmail.New(log, authService),
	)
	r.With(ratelimit.Login()).Post("/login",
		login.New(log, validate, authService),
	)
	r.Post("/forgot-password",
		forgotPassword.New(log, validate, authService),
	)
	r.Post("/verify-otp/{email}",
		verifyOTP.New(log, validate, authService),
	)
	r.Post("/change-password/{email}",
		changePassword.New(log, validate, authService),
	)

	r.Group(func(pr chi.Router) {
		pr.Use(authn.Authenticate(log, cfg.Tokens.Secret))

		pr.Post("/logout", logout.New(log, authService))

		pr.Route("/friends", func(fr chi.Router) {
			fr.Get("/not-friends", notFriends.New(log, friendService))
			fr.Post("/add/{id}", addFriend.New(log, friendService))
			fr.Delete("/remove/{id}", removeFriend.New(log, friendService))
			fr.Get("/received", receivedRequests.New(log, friendService))
			fr.Post("/accept", acceptRequest.New(log, validate, friendService))
			fr.Post("/reject", rejectRequest.New(log, validate, friendService))
		})

		pr.With(authn.RequireAdmin(log, userProvider)).Get("/admin/users",
			listUsers.New(log, friendService),
		)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
