package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/api/responses"
	"github.com/esignly/contracts-backend/api/validators"
	"github.com/esignly/contracts-backend/internal/templates"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type templateCreateRequest struct {
	Name        string   `json:"name" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Content     string   `json:"content" validate:"required"`
	SignerRoles []string `json:"signer_roles" validate:"required,min=1"`
}

func (r templateCreateRequest) toInput() (templates.CreateTemplateInput, error) {
	templateType, err := enums.ParseTemplateType(strings.TrimSpace(r.Type))
	if err != nil {
		return templates.CreateTemplateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid template type")
	}
	return templates.CreateTemplateInput{
		Name:        strings.TrimSpace(r.Name),
		Type:        templateType,
		Content:     r.Content,
		SignerRoles: r.SignerRoles,
	}, nil
}

type templateUpdateRequest struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
	Active  *bool   `json:"active"`
}

// TemplateCreate handles registering a new contract template.
func TemplateCreate(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		var payload templateCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, templateResponseFromModel(created))
	}
}

func TemplateGet(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "templateId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template id"))
			return
		}

		row, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, templateResponseFromModel(row))
	}
}

func TemplateList(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := strings.EqualFold(r.URL.Query().Get("active"), "true")

		rows, err := svc.List(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]templateResponse, 0, len(rows))
		for i := range rows {
			items = append(items, templateResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// TemplateUpdate handles renaming, content edits, and activation flips.
// A content edit bumps the version; existing contracts keep their snapshot.
func TemplateUpdate(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "templateId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template id"))
			return
		}

		var payload templateUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, templates.UpdateTemplateInput{
			Name:    payload.Name,
			Content: payload.Content,
			Active:  payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, templateResponseFromModel(updated))
	}
}

type templateResponse struct {
	ID           uuid.UUID          `json:"id"`
	Name         string             `json:"name"`
	Type         enums.TemplateType `json:"type"`
	Content      string             `json:"content"`
	Placeholders []string           `json:"placeholders"`
	SignerRoles  []string           `json:"signer_roles"`
	Active       bool               `json:"active"`
	Version      int                `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func templateResponseFromModel(m *models.Template) templateResponse {
	return templateResponse{
		ID:           m.ID,
		Name:         m.Name,
		Type:         m.Type,
		Content:      m.Content,
		Placeholders: m.Placeholders,
		SignerRoles:  m.SignerRoles,
		Active:       m.Active,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
