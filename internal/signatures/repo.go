package signatures

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
)

// Repository defines persistence operations for signatures and their
// certificates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSignature(ctx context.Context, signature *models.Signature) error
	CreateCertificate(ctx context.Context, certificate *models.Certificate) error
	// FindSignatureBySigner returns nil when the signer has not signed.
	FindSignatureBySigner(ctx context.Context, signerID uuid.UUID) (*models.Signature, error)
	FindCertificateByNumber(ctx context.Context, number string) (*models.Certificate, error)
	ListCertificatesByContract(ctx context.Context, contractID uuid.UUID) ([]models.Certificate, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a signatures repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSignature(ctx context.Context, signature *models.Signature) error {
	return r.db.WithContext(ctx).Create(signature).Error
}

func (r *repository) CreateCertificate(ctx context.Context, certificate *models.Certificate) error {
	return r.db.WithContext(ctx).Create(certificate).Error
}

func (r *repository) FindSignatureBySigner(ctx context.Context, signerID uuid.UUID) (*models.Signature, error) {
	var row models.Signature
	err := r.db.WithContext(ctx).
		Where("signer_id = ?", signerID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindCertificateByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	var row models.Certificate
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListCertificatesByContract(ctx context.Context, contractID uuid.UUID) ([]models.Certificate, error) {
	var rows []models.Certificate
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("issued_at ASC").
		Find(&rows).Error
	return rows, err
}
