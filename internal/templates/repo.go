package templates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
)

// Repository defines persistence operations for contract templates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, template *models.Template) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	List(ctx context.Context, activeOnly bool) ([]models.Template, error)
	Save(ctx context.Context, template *models.Template) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a template repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var row models.Template
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.Template, error) {
	query := r.db.WithContext(ctx).Model(&models.Template{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.Template
	err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// Save persists the full row. Serialized columns (placeholders,
// signer roles) only round-trip through struct writes.
func (r *repository) Save(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Save(template).Error
}
