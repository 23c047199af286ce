package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/api/responses"
	"github.com/esignly/contracts-backend/api/validators"
	"github.com/esignly/contracts-backend/internal/consent"
	"github.com/esignly/contracts-backend/pkg/db/models"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type consentRequest struct {
	AckHardwareAccess bool `json:"ack_hardware_access"`
	AckPaperCopy      bool `json:"ack_paper_copy"`
	AckWithdrawRight  bool `json:"ack_withdraw_right"`
}

// ConsentRecord stores the caller's disclosure acknowledgements for a
// contract. All three must be affirmed before a signature is accepted.
func ConsentRecord(svc consent.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
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

		var payload consentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Record(r.Context(), consent.RecordConsentInput{
			ContractID:        contractID,
			UserID:            userID,
			AckHardwareAccess: payload.AckHardwareAccess,
			AckPaperCopy:      payload.AckPaperCopy,
			AckWithdrawRight:  payload.AckWithdrawRight,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, consentResponseFromModel(record))
	}
}

func ConsentGet(svc consent.Service, logg *logger.Logger) http.HandlerFunc {
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

		record, err := svc.Get(r.Context(), contractID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, consentResponseFromModel(record))
	}
}

type consentResponse struct {
	ID                uuid.UUID `json:"id"`
	ContractID        uuid.UUID `json:"contract_id"`
	UserID            uuid.UUID `json:"user_id"`
	AckHardwareAccess bool      `json:"ack_hardware_access"`
	AckPaperCopy      bool      `json:"ack_paper_copy"`
	AckWithdrawRight  bool      `json:"ack_withdraw_right"`
	ConsentedAt       time.Time `json:"consented_at"`
}

func consentResponseFromModel(m *models.ConsentRecord) consentResponse {
	return consentResponse{
		ID:                m.ID,
		ContractID:        m.ContractID,
		UserID:            m.UserID,
		AckHardwareAccess: m.AckHardwareAccess,
		AckPaperCopy:      m.AckPaperCopy,
		AckWithdrawRight:  m.AckWithdrawRight,
		ConsentedAt:       m.ConsentedAt,
	}
}
