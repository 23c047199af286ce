package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/api/responses"
	"github.com/esignly/contracts-backend/api/validators"
	"github.com/esignly/contracts-backend/internal/signatures"
	"github.com/esignly/contracts-backend/pkg/db/models"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type signatureSubmitRequest struct {
	MarkRef             string `json:"mark_ref" validate:"required"`
	TypedName           string `json:"typed_name" validate:"required"`
	AgreedToTerms       bool   `json:"agreed_to_terms"`
	IntendedAsSignature bool   `json:"intended_as_signature"`
}

// SignatureSubmit captures the caller's signature and issues the
// completion certificate in the same transaction.
func SignatureSubmit(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature service unavailable"))
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

		var payload signatureSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), signatures.SubmitInput{
			ContractID:          contractID,
			UserID:              userID,
			MarkRef:             strings.TrimSpace(payload.MarkRef),
			TypedName:           strings.TrimSpace(payload.TypedName),
			AgreedToTerms:       payload.AgreedToTerms,
			IntendedAsSignature: payload.IntendedAsSignature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, submitResponseFromResult(result))
	}
}

func CertificateList(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := contractIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListCertificates(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]certificateResponse, 0, len(rows))
		for i := range rows {
			items = append(items, certificateResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func CertificateGet(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := strings.TrimSpace(chi.URLParam(r, "certificateNumber"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "certificate number is required"))
			return
		}

		cert, err := svc.GetCertificate(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, certificateResponseFromModel(cert))
	}
}

// CertificateVerify recomputes the content hash for a certificate and
// reports whether it still matches what was signed.
func CertificateVerify(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := strings.TrimSpace(chi.URLParam(r, "certificateNumber"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "certificate number is required"))
			return
		}

		result, err := svc.Verify(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"certificate":  certificateResponseFromModel(result.Certificate),
			"valid":        result.Valid,
			"current_hash": result.CurrentHash,
		})
	}
}

type signatureResponse struct {
	ID                  uuid.UUID `json:"id"`
	ContractID          uuid.UUID `json:"contract_id"`
	SignerID            uuid.UUID `json:"signer_id"`
	MarkRef             string    `json:"mark_ref"`
	TypedName           string    `json:"typed_name"`
	AgreedToTerms       bool      `json:"agreed_to_terms"`
	IntendedAsSignature bool      `json:"intended_as_signature"`
	SignedAt            time.Time `json:"signed_at"`
}

type certificateResponse struct {
	ID          uuid.UUID `json:"id"`
	ContractID  uuid.UUID `json:"contract_id"`
	SignatureID uuid.UUID `json:"signature_id"`
	Number      string    `json:"number"`
	ContentHash string    `json:"content_hash"`
	IssuedAt    time.Time `json:"issued_at"`
}

type submitResponse struct {
	Signature         signatureResponse   `json:"signature"`
	Certificate       certificateResponse `json:"certificate"`
	ContractCompleted bool                `json:"contract_completed"`
}

func signatureResponseFromModel(m *models.Signature) signatureResponse {
	return signatureResponse{
		ID:                  m.ID,
		ContractID:          m.ContractID,
		SignerID:            m.SignerID,
		MarkRef:             m.MarkRef,
		TypedName:           m.TypedName,
		AgreedToTerms:       m.AgreedToTerms,
		IntendedAsSignature: m.IntendedAsSignature,
		SignedAt:            m.SignedAt,
	}
}

func certificateResponseFromModel(m *models.Certificate) certificateResponse {
	return certificateResponse{
		ID:          m.ID,
		ContractID:  m.ContractID,
		SignatureID: m.SignatureID,
		Number:      m.Number,
		ContentHash: m.ContentHash,
		IssuedAt:    m.IssuedAt,
	}
}

func submitResponseFromResult(result *signatures.SubmitResult) submitResponse {
	return submitResponse{
		Signature:         signatureResponseFromModel(result.Signature),
		Certificate:       certificateResponseFromModel(result.Certificate),
		ContractCompleted: result.ContractCompleted,
	}
}
