package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/api/responses"
	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	"github.com/esignly/contracts-backend/pkg/logger"
)

// AuditEvents returns a contract's lifecycle trail in recorded order.
func AuditEvents(recorder audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := contractIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := recorder.ListEvents(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]auditEventResponse, 0, len(rows))
		for i := range rows {
			items = append(items, auditEventResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

type auditEventResponse struct {
	ID         int64                `json:"id"`
	ContractID uuid.UUID            `json:"contract_id"`
	Type       enums.AuditEventType `json:"type"`
	ActorID    *uuid.UUID           `json:"actor_id,omitempty"`
	Details    map[string]any       `json:"details,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

func auditEventResponseFromModel(m *models.AuditEvent) auditEventResponse {
	return auditEventResponse{
		ID:         m.ID,
		ContractID: m.ContractID,
		Type:       m.Type,
		ActorID:    m.ActorID,
		Details:    m.Details,
		CreatedAt:  m.CreatedAt,
	}
}
