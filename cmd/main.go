package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity_service/internal/auth"
	"identity_service/internal/config"
	forgotPassword "identity_service/internal/http_server/handlers/forgot_password"
	"identity_service/internal/http_server/handlers/login"
	"identity_service/internal/http_server/handlers/profile"
	resendOtp "identity_service/internal/http_server/handlers/resend_otp"
	resetPassword "identity_service/internal/http_server/handlers/reset_password"
	sendOtp "identity_service/internal/http_server/handlers/send_otp"
	"identity_service/internal/http_server/handlers/signup"
	verifyOtp "identity_service/internal/http_server/handlers/verify_otp"
	verifyResetOtp "identity_service/internal/http_server/handlers/verify_reset_otp"
	"identity_service/internal/lib/jwt"
	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/lib/notification"
	"identity_service/internal/metrics"
	rateLimit "identity_service/internal/middleware/ratelimit"
	"identity_service/internal/middleware/session"
	"identity_service/internal/otp"
	"identity_service/internal/rabbitmq"
	"identity_service/internal/storage/postgres"
	"identity_service/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting identity service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	if err := storage.Migrate(ctx); err != nil {
		log.Error("failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	codeStore, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.OTP.KeyPrefix)
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}
	defer codeStore.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		os.Exit(1)
	}
	defer msgBroker.Close()

	m, err := metrics.New(nil)
	if err != nil {
		log.Error("failed to register metrics", sl.Err(err))
		os.Exit(1)
	}

	notifier := notification.New(log, msgBroker, cfg.OTP.TTL)
	ledger := otp.New(log, codeStore, notifier, m, cfg.OTP.TTL)
	tokens := jwt.New(cfg.Tokens.Secret, cfg.Tokens.SessionTokenTTL, cfg.Tokens.ResetTokenTTL)

	authService := auth.New(log, storage, storage, storage, ledger, tokens, notifier)

	router := setupRouter(log, authService, tokens, m)

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
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Identity service stopped")
}

func setupRouter(
	log *slog.Logger,
	authService *auth.Auth,
	tokens *jwt.Issuer,
	m *metrics.Metrics,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Signup()).Post("/signup", signup.New(log, validate, authService))
		r.With(rateLimit.Login()).Post("/login", login.New(log, validate, authService))

		r.With(rateLimit.SendOtp()).Post("/resend-otp", resendOtp.New(log, validate, authService))
		r.With(rateLimit.VerifyOtp()).Post("/verify-otp", verifyOtp.New(log, validate, authService))

		r.With(rateLimit.SendOtp()).Post("/forgot-password", forgotPassword.New(log, validate, authService))
		r.With(rateLimit.VerifyOtp()).Post("/verify-reset-otp", verifyResetOtp.New(log, validate, authService))
		r.With(rateLimit.ResetPassword()).Post("/reset-password", resetPassword.New(log, validate, authService))

		r.Group(func(r chi.Router) {
			r.Use(session.New(log, tokens))

			r.With(rateLimit.SendOtp()).Post("/send-otp", sendOtp.New(log, validate, authService))

			r.With(rateLimit.Profile()).Get("/profile", profile.NewGet(log, authService))
			r.With(rateLimit.Profile()).Put("/profile", profile.NewUpdate(log, validate, authService))
			r.With(rateLimit.Profile()).Delete("/profile", profile.NewDelete(log, validate, authService))
		})
	})

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
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
