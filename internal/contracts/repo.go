package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	"github.com/esignly/contracts-backend/pkg/pagination"
)

// ContractPage is one cursor page of contracts.
type ContractPage struct {
	Items      []models.Contract
	NextCursor string
}

// Repository defines persistence operations for contracts and signers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.Contract) error
	CreateSigners(ctx context.Context, signers []models.Signer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	FindSigners(ctx context.Context, contractID uuid.UUID) ([]models.Signer, error)
	UpdateContractGuarded(ctx context.Context, id uuid.UUID, from []enums.ContractStatus, updates map[string]any) (int64, error)
	UpdateSignerGuarded(ctx context.Context, id uuid.UUID, from enums.SignerStatus, updates map[string]any) (int64, error)
	NextNumber(ctx context.Context, year int) (string, error)
	ListDueForExpiry(ctx context.Context, cutoff time.Time, limit int) ([]models.Contract, error)
	ListByConsultant(ctx context.Context, consultantID uuid.UUID, params pagination.Params) (*ContractPage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a contracts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Omit("Signers").Create(contract).Error
}

func (r *repository) CreateSigners(ctx context.Context, signers []models.Signer) error {
	if len(signers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&signers).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var row models.Contract
	err := r.db.WithContext(ctx).
		Preload("Signers", func(db *gorm.DB) *gorm.DB {
			return db.Order("signing_order ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindSigners(ctx context.Context, contractID uuid.UUID) ([]models.Signer, error) {
	var rows []models.Signer
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("signing_order ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// UpdateContractGuarded applies updates only while the row is still in one
// of the expected states. A zero row count means a competing transition
// won the race.
func (r *repository) UpdateContractGuarded(ctx context.Context, id uuid.UUID, from []enums.ContractStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateSignerGuarded(ctx context.Context, id uuid.UUID, from enums.SignerStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Signer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// NextNumber allocates the next CON-YYYY-NNN number from the per-year
// counter. Callers run this inside the creation transaction so an
// aborted create never burns a number that a reader has seen.
func (r *repository) NextNumber(ctx context.Context, year int) (string, error) {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO contract_counters (year, last_value) VALUES (?, 1)
		 ON CONFLICT (year) DO UPDATE SET last_value = last_value + 1`,
		year,
	).Error
	if err != nil {
		return "", err
	}

	var counter models.ContractCounter
	if err := r.db.WithContext(ctx).Where("year = ?", year).First(&counter).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("CON-%d-%03d", year, counter.LastValue), nil
}

func (r *repository) ListDueForExpiry(ctx context.Context, cutoff time.Time, limit int) ([]models.Contract, error) {
	var rows []models.Contract
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiration_date < ?", enums.ContractStatusPendingSignature, cutoff).
		Order("expiration_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByConsultant(ctx context.Context, consultantID uuid.UUID, params pagination.Params) (*ContractPage, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("consultant_id = ?", consultantID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Contract
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > normalizedLimit {
		rows = rows[:normalizedLimit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &ContractPage{Items: rows, NextCursor: nextCursor}, nil
}
