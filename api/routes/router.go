package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esignly/contracts-backend/api/controllers"
	"github.com/esignly/contracts-backend/api/middleware"
	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/consent"
	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/internal/review"
	"github.com/esignly/contracts-backend/internal/signatures"
	"github.com/esignly/contracts-backend/internal/templates"
	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db"
	"github.com/esignly/contracts-backend/pkg/enums"
	"github.com/esignly/contracts-backend/pkg/logger"
	"github.com/esignly/contracts-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	templateService templates.Service,
	contractService contracts.Service,
	consentService consent.Service,
	reviewService review.Service,
	signatureService signatures.Service,
	auditRecorder audit.Recorder,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.Window,
		cfg.RateLimit.UserLimit,
		cfg.RateLimit.IPLimit,
	)
	signaturePolicy := middleware.NewRateLimitPolicy(
		"signature",
		cfg.RateLimit.SignatureWindow,
		cfg.RateLimit.SignatureUserLimit,
		cfg.RateLimit.SignatureIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		adminOnly := middleware.RequireRole(logg, string(enums.ActorRoleAdmin))

		r.Get("/templates", controllers.TemplateList(templateService, logg))
		r.Get("/templates/{templateId}", controllers.TemplateGet(templateService, logg))
		r.With(adminOnly).Post("/templates", controllers.TemplateCreate(templateService, logg))
		r.With(adminOnly).Patch("/templates/{templateId}", controllers.TemplateUpdate(templateService, logg))

		r.Post("/contracts", controllers.ContractCreate(contractService, logg))
		r.Get("/contracts", controllers.ContractList(contractService, logg))

		r.Route("/contracts/{contractId}", func(r chi.Router) {
			r.Get("/", controllers.ContractGet(contractService, logg))
			r.Post("/send", controllers.ContractSend(contractService, logg))
			r.Post("/decline", controllers.ContractDecline(contractService, logg))
			r.Post("/cancel", controllers.ContractCancel(contractService, logg))

			r.Post("/consent", controllers.ConsentRecord(consentService, logg))
			r.Get("/consent", controllers.ConsentGet(consentService, logg))

			r.Post("/review", controllers.ReviewStart(reviewService, logg))
			r.Patch("/review", controllers.ReviewProgress(reviewService, logg))
			r.Get("/review", controllers.ReviewGet(reviewService, logg))

			r.With(middleware.RateLimit(signaturePolicy, redisClient, logg)).
				Post("/signature", controllers.SignatureSubmit(signatureService, logg))
			r.Get("/certificates", controllers.CertificateList(signatureService, logg))

			r.Get("/audit", controllers.AuditEvents(auditRecorder, logg))
		})

		r.Get("/certificates/{certificateNumber}", controllers.CertificateGet(signatureService, logg))
		r.Get("/certificates/{certificateNumber}/verify", controllers.CertificateVerify(signatureService, logg))
	})

	return r
}
