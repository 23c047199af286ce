package consent

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
)

// Repository defines persistence operations for consent records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Find returns the consent record for the (contract, user) pair, or
	// nil when none has been captured yet.
	Find(ctx context.Context, contractID, userID uuid.UUID) (*models.ConsentRecord, error)
	Create(ctx context.Context, record *models.ConsentRecord) error
	Save(ctx context.Context, record *models.ConsentRecord) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a consent repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, contractID, userID uuid.UUID) (*models.ConsentRecord, error) {
	var row models.ConsentRecord
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND user_id = ?", contractID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, record *models.ConsentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) Save(ctx context.Context, record *models.ConsentRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}
