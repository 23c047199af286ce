package review

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
)

// Repository defines persistence operations for review sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Find returns the review session for the (contract, user) pair, or
	// nil when the signer has not opened the document yet.
	Find(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error)
	Create(ctx context.Context, session *models.ReviewSession) error
	// UpdateProgressGuarded applies updates only while the session is
	// still open and behind the new progress. A zero row count means a
	// concurrent update moved the session further already.
	UpdateProgressGuarded(ctx context.Context, id uuid.UUID, progress int, updates map[string]any) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a review repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error) {
	var row models.ReviewSession
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

func (r *repository) Create(ctx context.Context, session *models.ReviewSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) UpdateProgressGuarded(ctx context.Context, id uuid.UUID, progress int, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReviewSession{}).
		Where("id = ? AND completed = ? AND progress < ?", id, false, progress).
		Updates(updates)
	return result.RowsAffected, result.Error
}
