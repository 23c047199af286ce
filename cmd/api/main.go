package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/esignly/contracts-backend/api/routes"
	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/consent"
	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/internal/review"
	"github.com/esignly/contracts-backend/internal/signatures"
	"github.com/esignly/contracts-backend/internal/templates"
	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db"
	"github.com/esignly/contracts-backend/pkg/logger"
	"github.com/esignly/contracts-backend/pkg/migrate"
	"github.com/esignly/contracts-backend/pkg/outbox"
	"github.com/esignly/contracts-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	templateService, err := templates.NewService(templates.ServiceParams{
		Repo:   templates.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create template service", err)
		os.Exit(1)
	}

	auditRecorder, err := audit.NewService(audit.ServiceParams{
		Repo:   audit.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	contractRepo := contracts.NewRepository(dbClient.DB())
	contractService, err := contracts.NewService(contracts.ServiceParams{
		Repo:      contractRepo,
		Templates: templateService,
		Audit:     auditRecorder,
		Outbox:    outboxService,
		Tx:        dbClient,
		Signing:   cfg.Signing,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create contract service", err)
		os.Exit(1)
	}

	consentService, err := consent.NewService(consent.ServiceParams{
		Repo:      consent.NewRepository(dbClient.DB()),
		Contracts: contractService,
		Signers:   contractRepo,
		Audit:     auditRecorder,
		Tx:        dbClient,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create consent service", err)
		os.Exit(1)
	}

	reviewService, err := review.NewService(review.ServiceParams{
		Repo:      review.NewRepository(dbClient.DB()),
		Contracts: contractService,
		Audit:     auditRecorder,
		Tx:        dbClient,
		Signing:   cfg.Signing,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}

	signatureService, err := signatures.NewService(signatures.ServiceParams{
		Repo:      signatures.NewRepository(dbClient.DB()),
		Contracts: contractRepo,
		Flow:      contractService,
		Consent:   consentService,
		Review:    reviewService,
		Tx:        dbClient,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create signature service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			templateService,
			contractService,
			consentService,
			reviewService,
			signatureService,
			auditRecorder,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
