package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/api/responses"
	"github.com/esignly/contracts-backend/api/validators"
	"github.com/esignly/contracts-backend/internal/review"
	"github.com/esignly/contracts-backend/pkg/db/models"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type reviewProgressRequest struct {
	Progress int `json:"progress" validate:"min=0,max=100"`
}

// ReviewStart opens (or returns) the caller's review session for a
// contract. Short documents complete immediately.
func ReviewStart(svc review.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := contractIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Start(r.Context(), contractID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reviewResponseFromModel(session))
	}
}

// ReviewProgress advances the caller's scroll progress. Progress never
// moves backwards.
func ReviewProgress(svc review.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := contractIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reviewProgressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.RecordProgress(r.Context(), contractID, userID, payload.Progress)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reviewResponseFromModel(session))
	}
}

func ReviewGet(svc review.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := contractIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Get(r.Context(), contractID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reviewResponseFromModel(session))
	}
}

type reviewResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContractID  uuid.UUID  `json:"contract_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func reviewResponseFromModel(m *models.ReviewSession) reviewResponse {
	return reviewResponse{
		ID:          m.ID,
		ContractID:  m.ContractID,
		UserID:      m.UserID,
		Progress:    m.Progress,
		Completed:   m.Completed,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}
