package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/config"
	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/handler"
	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/repository"
	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/usecase"
	"github.com/elencerrado/oficaz-sub004/shared/auth"
	"github.com/elencerrado/oficaz-sub004/shared/validate"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "auth-service").Logger()

	cfg := config.New(&logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	db := client.Database(cfg.MongoDatabase)

	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)
	companyRepo := repository.NewCompanyMongoRepository(db)
	subRepo := repository.NewSubscriptionMongoRepository(db)
	sessionRepo := repository.NewSessionMongoRepository(db)

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.Issuer)
	authUsecase := usecase.NewAuthUsecase(userRepo, companyRepo, subRepo, sessionRepo, jwtAuth, cfg)

	validator, err := validate.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build validator")
	}

	authHandler := handler.NewAuthHTTPHandler(authUsecase, validator, &logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	authHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("auth service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
