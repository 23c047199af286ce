package consent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type contractLoader interface {
	Get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error)
}

// RecordConsentInput carries the disclosure acknowledgements a signer
// affirmed in the consent dialog.
type RecordConsentInput struct {
	ContractID        uuid.UUID
	UserID            uuid.UUID
	AckHardwareAccess bool
	AckPaperCopy      bool
	AckWithdrawRight  bool
}

// Service owns the consent ledger. A signer without a complete consent
// record cannot submit a signature.
type Service interface {
	Record(ctx context.Context, input RecordConsentInput) (*models.ConsentRecord, error)
	Get(ctx context.Context, contractID, userID uuid.UUID) (*models.ConsentRecord, error)
	// HasConsent reports whether the user holds a complete consent record
	// for the contract. Incomplete or absent records both report false.
	HasConsent(ctx context.Context, contractID, userID uuid.UUID) (bool, error)
}

// ServiceParams groups dependencies for the consent service.
type ServiceParams struct {
	Repo      Repository
	Contracts contractLoader
	Signers   contracts.Repository
	Audit     audit.Recorder
	Tx        txRunner
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	contracts contractLoader
	signers   contracts.Repository
	audit     audit.Recorder
	tx        txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a consent service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consent repo is required")
	}
	if params.Contracts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract loader is required")
	}
	if params.Signers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signers repo is required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit recorder is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	return &service{
		repo:      params.Repo,
		contracts: params.Contracts,
		signers:   params.Signers,
		audit:     params.Audit,
		tx:        params.Tx,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Record(ctx context.Context, input RecordConsentInput) (*models.ConsentRecord, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.AckHardwareAccess || !input.AckPaperCopy || !input.AckWithdrawRight {
		return nil, pkgerrors.New(pkgerrors.CodeConsentRequired, "all consent acknowledgements must be affirmed")
	}

	contract, err := s.contracts.Get(ctx, input.ContractID)
	if err != nil {
		return nil, err
	}
	if err := contracts.CheckSignable(contract, s.now()); err != nil {
		return nil, err
	}

	var record *models.ConsentRecord
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The signed-status gate reads inside the write transaction so a
		// signature landing in the race window blocks the overwrite.
		signers, err := s.signers.WithTx(tx).FindSigners(ctx, input.ContractID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load signers")
		}
		signer, err := contracts.SignerForUser(signers, input.UserID)
		if err != nil {
			return err
		}
		if signer.Status == enums.SignerStatusSigned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "consent cannot change after the signer has signed")
		}

		existing, err := repo.Find(ctx, input.ContractID, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consent record")
		}

		now := s.now()
		if existing != nil {
			existing.AckHardwareAccess = input.AckHardwareAccess
			existing.AckPaperCopy = input.AckPaperCopy
			existing.AckWithdrawRight = input.AckWithdrawRight
			existing.ConsentedAt = now
			existing.UpdatedAt = now
			if err := repo.Save(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update consent record")
			}
			record = existing
		} else {
			record = &models.ConsentRecord{
				ID:                uuid.New(),
				ContractID:        input.ContractID,
				UserID:            input.UserID,
				AckHardwareAccess: input.AckHardwareAccess,
				AckPaperCopy:      input.AckPaperCopy,
				AckWithdrawRight:  input.AckWithdrawRight,
				ConsentedAt:       now,
			}
			if err := repo.Create(ctx, record); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create consent record")
			}
		}

		return s.audit.Record(ctx, tx, audit.Entry{
			ContractID: input.ContractID,
			Type:       enums.AuditEventConsentRecorded,
			ActorID:    &input.UserID,
			Details: map[string]any{
				"ack_hardware_access": input.AckHardwareAccess,
				"ack_paper_copy":      input.AckPaperCopy,
				"ack_withdraw_right":  input.AckWithdrawRight,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{"contract_id": input.ContractID.String(), "user_id": input.UserID.String()}
		s.logg.Info(s.logg.WithFields(ctx, fields), "consent recorded")
	}
	return record, nil
}

func (s *service) Get(ctx context.Context, contractID, userID uuid.UUID) (*models.ConsentRecord, error) {
	if contractID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id and user id are required")
	}
	record, err := s.repo.Find(ctx, contractID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consent record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no consent record for this signer")
	}
	return record, nil
}

func (s *service) HasConsent(ctx context.Context, contractID, userID uuid.UUID) (bool, error) {
	record, err := s.repo.Find(ctx, contractID, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consent record")
	}
	if record == nil {
		return false, nil
	}
	return record.AckHardwareAccess && record.AckPaperCopy && record.AckWithdrawRight, nil
}
