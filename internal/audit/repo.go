package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
)

// Repository defines persistence operations for the audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.AuditEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByContract returns the full trail in insertion order. The
// autoincrement id breaks ties between events recorded in the same
// transaction.
func (r *repository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.AuditEvent, error) {
	var rows []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
