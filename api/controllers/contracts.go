package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/api/middleware"
	"github.com/esignly/contracts-backend/api/responses"
	"github.com/esignly/contracts-backend/api/validators"
	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
	"github.com/esignly/contracts-backend/pkg/pagination"
)

// actorID extracts the authenticated user from the request context.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func contractIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "contractId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id")
	}
	return id, nil
}

type contractCreateRequest struct {
	TemplateID        string            `json:"template_id" validate:"required"`
	Title             string            `json:"title" validate:"required"`
	ConsultantID      string            `json:"consultant_id" validate:"required"`
	ProjectID         string            `json:"project_id" validate:"required"`
	EffectiveDate     time.Time         `json:"effective_date" validate:"required"`
	ExpirationDate    time.Time         `json:"expiration_date" validate:"required"`
	PlaceholderValues map[string]string `json:"placeholder_values"`
	SignerAssignments map[string]string `json:"signer_assignments" validate:"required,min=1"`
}

func (r contractCreateRequest) toInput(createdBy uuid.UUID) (contracts.CreateContractInput, error) {
	templateID, err := uuid.Parse(strings.TrimSpace(r.TemplateID))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template_id")
	}
	consultantID, err := uuid.Parse(strings.TrimSpace(r.ConsultantID))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid consultant_id")
	}
	projectID, err := uuid.Parse(strings.TrimSpace(r.ProjectID))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project_id")
	}

	assignments := make(map[string]uuid.UUID, len(r.SignerAssignments))
	for role, rawID := range r.SignerAssignments {
		userID, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid signer assignment for role "+role)
		}
		assignments[role] = userID
	}

	return contracts.CreateContractInput{
		TemplateID:        templateID,
		Title:             strings.TrimSpace(r.Title),
		ConsultantID:      consultantID,
		ProjectID:         projectID,
		EffectiveDate:     r.EffectiveDate,
		ExpirationDate:    r.ExpirationDate,
		PlaceholderValues: r.PlaceholderValues,
		SignerAssignments: assignments,
		CreatedBy:         createdBy,
	}, nil
}

type declineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ContractCreate instantiates a contract from a template.
func ContractCreate(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload contractCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, contractResponseFromModel(created))
	}
}

// ContractSend moves a draft into pending signature and notifies signers.
func ContractSend(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
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

		sent, err := svc.Send(r.Context(), contractID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(sent))
	}
}

func ContractGet(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := contractIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contract, err := svc.Get(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(contract))
	}
}

// ContractList returns the caller's contracts as a cursor page.
func ContractList(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		consultantID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("consultant_id")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid consultant_id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), consultantID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contractResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, contractResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"items":       items,
			"next_cursor": page.NextCursor,
		})
	}
}

// ContractDecline records a signer's refusal and freezes the contract.
func ContractDecline(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload declineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		declined, err := svc.Decline(r.Context(), contracts.DeclineInput{
			ContractID: contractID,
			UserID:     userID,
			Reason:     strings.TrimSpace(payload.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(declined))
	}
}

// ContractCancel withdraws a draft or in-flight contract.
func ContractCancel(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cancelled, err := svc.Cancel(r.Context(), contracts.CancelInput{
			ContractID: contractID,
			ActorID:    userID,
			Reason:     strings.TrimSpace(payload.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(cancelled))
	}
}

type signerResponse struct {
	ID            uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	Role          string             `json:"role"`
	SigningOrder  int                `json:"signing_order"`
	Status        enums.SignerStatus `json:"status"`
	SignedAt      *time.Time         `json:"signed_at,omitempty"`
	DeclinedAt    *time.Time         `json:"declined_at,omitempty"`
	DeclineReason *string            `json:"decline_reason,omitempty"`
}

type contractResponse struct {
	ID              uuid.UUID            `json:"id"`
	Number          string               `json:"number"`
	TemplateID      uuid.UUID            `json:"template_id"`
	TemplateVersion int                  `json:"template_version"`
	Title           string               `json:"title"`
	Content         string               `json:"content"`
	ConsultantID    uuid.UUID            `json:"consultant_id"`
	ProjectID       uuid.UUID            `json:"project_id"`
	SigningPolicy   enums.SigningPolicy  `json:"signing_policy"`
	Status          enums.ContractStatus `json:"status"`
	EffectiveDate   time.Time            `json:"effective_date"`
	ExpirationDate  time.Time            `json:"expiration_date"`
	SentAt          *time.Time           `json:"sent_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	DeclinedAt      *time.Time           `json:"declined_at,omitempty"`
	ExpiredAt       *time.Time           `json:"expired_at,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	Signers         []signerResponse     `json:"signers"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func contractResponseFromModel(m *models.Contract) contractResponse {
	signers := make([]signerResponse, 0, len(m.Signers))
	for _, s := range m.Signers {
		signers = append(signers, signerResponse{
			ID:            s.ID,
			UserID:        s.UserID,
			Role:          s.Role,
			SigningOrder:  s.SigningOrder,
			Status:        s.Status,
			SignedAt:      s.SignedAt,
			DeclinedAt:    s.DeclinedAt,
			DeclineReason: s.DeclineReason,
		})
	}
	return contractResponse{
		ID:              m.ID,
		Number:          m.Number,
		TemplateID:      m.TemplateID,
		TemplateVersion: m.TemplateVersion,
		Title:           m.Title,
		Content:         m.Content,
		ConsultantID:    m.ConsultantID,
		ProjectID:       m.ProjectID,
		SigningPolicy:   m.SigningPolicy,
		Status:          m.Status,
		EffectiveDate:   m.EffectiveDate,
		ExpirationDate:  m.ExpirationDate,
		SentAt:          m.SentAt,
		CompletedAt:     m.CompletedAt,
		DeclinedAt:      m.DeclinedAt,
		ExpiredAt:       m.ExpiredAt,
		CancelledAt:     m.CancelledAt,
		Signers:         signers,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
