package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

// Entry describes a lifecycle event to append to a contract's trail.
type Entry struct {
	ContractID uuid.UUID
	Type       enums.AuditEventType
	ActorID    *uuid.UUID
	Details    map[string]any
	OccurredAt time.Time
}

// Recorder appends audit events and reads trails back. Writes happen
// inside the caller's transaction so the trail always matches the
// state change that produced it.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	ListEvents(ctx context.Context, contractID uuid.UUID) ([]models.AuditEvent, error)
}

// ServiceParams groups dependencies for the audit recorder.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an audit recorder with the required dependencies.
func NewService(params ServiceParams) (Recorder, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit repo is required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if entry.ContractID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if !entry.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid audit event type")
	}

	row := models.AuditEvent{
		ContractID: entry.ContractID,
		Type:       entry.Type,
		ActorID:    entry.ActorID,
		Details:    entry.Details,
	}
	if !entry.OccurredAt.IsZero() {
		row.CreatedAt = entry.OccurredAt
	}

	if err := s.repo.WithTx(tx).Insert(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append audit event")
	}

	if s.logg != nil {
		fields := map[string]any{
			"contract_id": entry.ContractID.String(),
			"event_type":  entry.Type,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "audit event recorded")
	}
	return nil
}

func (s *service) ListEvents(ctx context.Context, contractID uuid.UUID) ([]models.AuditEvent, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	rows, err := s.repo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit events")
	}
	return rows, nil
}
