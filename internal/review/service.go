package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/pkg/config"
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

// Service tracks how far each signer has read the document. A signer
// whose session has not completed cannot submit a signature.
type Service interface {
	// Start opens a review session for the signer, or returns the
	// existing one. Short documents complete the session immediately.
	Start(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error)
	// RecordProgress advances the session's scroll progress. Progress
	// never moves backwards; stale updates return the current session.
	RecordProgress(ctx context.Context, contractID, userID uuid.UUID, progress int) (*models.ReviewSession, error)
	Get(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error)
	IsComplete(ctx context.Context, contractID, userID uuid.UUID) (bool, error)
}

// ServiceParams groups dependencies for the review service.
type ServiceParams struct {
	Repo      Repository
	Contracts contractLoader
	Audit     audit.Recorder
	Tx        txRunner
	Signing   config.SigningConfig
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	contracts contractLoader
	audit     audit.Recorder
	tx        txRunner
	signing   config.SigningConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a review service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review repo is required")
	}
	if params.Contracts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract loader is required")
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
		audit:     params.Audit,
		tx:        params.Tx,
		signing:   params.Signing,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Start(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error) {
	contract, err := s.loadSignableContract(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Find(ctx, contractID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review session")
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	session := &models.ReviewSession{
		ID:         uuid.New(),
		ContractID: contractID,
		UserID:     userID,
		StartedAt:  now,
	}
	// Documents short enough to fit on one screen complete on open.
	autoComplete := s.signing.ReviewShortDocChars > 0 && len(contract.Content) <= s.signing.ReviewShortDocChars
	if autoComplete {
		session.Progress = 100
		session.Completed = true
		session.CompletedAt = &now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review session")
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			ContractID: contractID,
			Type:       enums.AuditEventReviewStarted,
			ActorID:    &userID,
		}); err != nil {
			return err
		}
		if autoComplete {
			return s.audit.Record(ctx, tx, audit.Entry{
				ContractID: contractID,
				Type:       enums.AuditEventReviewCompleted,
				ActorID:    &userID,
				Details:    map[string]any{"auto_completed": true, "content_length": len(contract.Content)},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) RecordProgress(ctx context.Context, contractID, userID uuid.UUID, progress int) (*models.ReviewSession, error) {
	if progress < 0 || progress > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "progress must be between 0 and 100")
	}
	if _, err := s.loadSignableContract(ctx, contractID, userID); err != nil {
		return nil, err
	}

	var session *models.ReviewSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.Find(ctx, contractID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review session")
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review session has not been started")
		}
		session = existing
		if existing.Completed || progress <= existing.Progress {
			return nil
		}

		now := s.now()
		completing := progress >= s.signing.ReviewCompletionPercent
		updates := map[string]any{
			"progress":   progress,
			"updated_at": now,
		}
		if completing {
			updates["completed"] = true
			updates["completed_at"] = now
		}

		// The progress guard re-checks the row at write time, so a
		// concurrent update that got further cannot be rolled back.
		affected, err := repo.UpdateProgressGuarded(ctx, existing.ID, progress, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review session")
		}
		if affected == 0 {
			current, err := repo.Find(ctx, contractID, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review session")
			}
			if current != nil {
				session = current
			}
			return nil
		}

		existing.Progress = progress
		existing.UpdatedAt = now
		if completing {
			existing.Completed = true
			existing.CompletedAt = &now
			return s.audit.Record(ctx, tx, audit.Entry{
				ContractID: contractID,
				Type:       enums.AuditEventReviewCompleted,
				ActorID:    &userID,
				Details:    map[string]any{"progress": progress},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) Get(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error) {
	if contractID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id and user id are required")
	}
	session, err := s.repo.Find(ctx, contractID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review session has not been started")
	}
	return session, nil
}

func (s *service) IsComplete(ctx context.Context, contractID, userID uuid.UUID) (bool, error) {
	session, err := s.repo.Find(ctx, contractID, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review session")
	}
	return session != nil && session.Completed, nil
}

func (s *service) loadSignableContract(ctx context.Context, contractID, userID uuid.UUID) (*models.Contract, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := contracts.CheckSignable(contract, s.now()); err != nil {
		return nil, err
	}
	if _, err := contracts.SignerForUser(contract.Signers, userID); err != nil {
		return nil, err
	}
	return contract, nil
}
