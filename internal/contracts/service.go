package contracts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/templates"
	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
	"github.com/esignly/contracts-backend/pkg/outbox"
	"github.com/esignly/contracts-backend/pkg/pagination"
)

const expirySweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ContractEvent is the notification payload emitted on lifecycle transitions.
type ContractEvent struct {
	ContractID   uuid.UUID            `json:"contract_id"`
	Number       string               `json:"number"`
	Title        string               `json:"title"`
	Status       enums.ContractStatus `json:"status"`
	ConsultantID uuid.UUID            `json:"consultant_id"`
	ProjectID    uuid.UUID            `json:"project_id"`
}

// CreateContractInput carries the factory parameters. SignerAssignments
// maps each template signer role to the user who will sign for it.
type CreateContractInput struct {
	TemplateID        uuid.UUID
	Title             string
	ConsultantID      uuid.UUID
	ProjectID         uuid.UUID
	EffectiveDate     time.Time
	ExpirationDate    time.Time
	PlaceholderValues map[string]string
	SignerAssignments map[string]uuid.UUID
	CreatedBy         uuid.UUID
}

// DeclineInput identifies the declining signer.
type DeclineInput struct {
	ContractID uuid.UUID
	UserID     uuid.UUID
	Reason     string
}

// CancelInput identifies the administrative cancellation.
type CancelInput struct {
	ContractID uuid.UUID
	ActorID    uuid.UUID
	Reason     string
}

// Service owns contract creation and every status transition.
type Service interface {
	Create(ctx context.Context, input CreateContractInput) (*models.Contract, error)
	Send(ctx context.Context, contractID, actorID uuid.UUID) (*models.Contract, error)
	Get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error)
	List(ctx context.Context, consultantID uuid.UUID, params pagination.Params) (*ContractPage, error)
	Decline(ctx context.Context, input DeclineInput) (*models.Contract, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Contract, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)

	// AdvanceOnSignature runs inside the signature submission transaction:
	// it flips the signer to signed and, when that signer was the last one
	// pending, completes the contract in the same transaction.
	AdvanceOnSignature(ctx context.Context, tx *gorm.DB, contract *models.Contract, signers []models.Signer, target *models.Signer, signedAt time.Time) (bool, error)
	// ExpireInTx persists the expired transition for a contract whose date
	// has passed, inside the caller's transaction.
	ExpireInTx(ctx context.Context, tx *gorm.DB, contract *models.Contract) error
}

// ServiceParams groups dependencies for the contracts service.
type ServiceParams struct {
	Repo      Repository
	Templates templates.Service
	Audit     audit.Recorder
	Outbox    outboxPublisher
	Tx        txRunner
	Signing   config.SigningConfig
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	templates templates.Service
	audit     audit.Recorder
	outbox    outboxPublisher
	tx        txRunner
	signing   config.SigningConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a contracts service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contracts repo is required")
	}
	if params.Templates == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template service is required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit recorder is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox publisher is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	return &service{
		repo:      params.Repo,
		templates: params.Templates,
		audit:     params.Audit,
		outbox:    params.Outbox,
		tx:        params.Tx,
		signing:   params.Signing,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateContractInput) (*models.Contract, error) {
	if input.TemplateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract title is required")
	}
	if input.ConsultantID == uuid.Nil || input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consultant and project references are required")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "creator identity missing")
	}
	if input.EffectiveDate.IsZero() || input.ExpirationDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "effective and expiration dates are required")
	}
	if !input.ExpirationDate.After(input.EffectiveDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration date must be after effective date")
	}
	if !input.ExpirationDate.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration date must be in the future")
	}

	template, err := s.templates.GetActive(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}

	content, err := templates.Render(template.Content, input.PlaceholderValues)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve template placeholders")
	}

	signers := make([]models.Signer, 0, len(template.SignerRoles))
	contractID := uuid.New()
	for i, role := range template.SignerRoles {
		userID, ok := input.SignerAssignments[role]
		if !ok || userID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no signer assigned for role "+role)
		}
		signers = append(signers, models.Signer{
			ID:           uuid.New(),
			ContractID:   contractID,
			UserID:       userID,
			Role:         role,
			SigningOrder: i + 1,
			Status:       enums.SignerStatusPending,
		})
	}

	contract := &models.Contract{
		ID:              contractID,
		TemplateID:      template.ID,
		TemplateVersion: template.Version,
		Title:           input.Title,
		Content:         content,
		ConsultantID:    input.ConsultantID,
		ProjectID:       input.ProjectID,
		SigningPolicy:   s.signing.SigningPolicy(),
		Status:          enums.ContractStatusDraft,
		EffectiveDate:   input.EffectiveDate,
		ExpirationDate:  input.ExpirationDate,
		CreatedBy:       input.CreatedBy,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := repo.NextNumber(ctx, s.now().Year())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate contract number")
		}
		contract.Number = number

		if err := repo.Create(ctx, contract); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contract")
		}
		if err := repo.CreateSigners(ctx, signers); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create signers")
		}

		return s.audit.Record(ctx, tx, audit.Entry{
			ContractID: contract.ID,
			Type:       enums.AuditEventCreated,
			ActorID:    &input.CreatedBy,
			Details: map[string]any{
				"number":           contract.Number,
				"template_id":      template.ID.String(),
				"template_version": template.Version,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	contract.Signers = signers
	if s.logg != nil {
		fields := map[string]any{"contract_id": contract.ID.String(), "number": contract.Number}
		s.logg.Info(s.logg.WithFields(ctx, fields), "contract created")
	}
	return contract, nil
}

func (s *service) Send(ctx context.Context, contractID, actorID uuid.UUID) (*models.Contract, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := s.load(ctx, repo, contractID)
		if err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft contracts can be sent for signature")
		}
		if len(contract.Signers) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract has no signers")
		}
		if unresolved := templates.UnresolvedPlaceholders(contract.Content); len(unresolved) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract content has unresolved placeholders").
				WithDetails(map[string]any{"placeholders": unresolved})
		}

		now := s.now()
		affected, err := repo.UpdateContractGuarded(ctx, contract.ID,
			[]enums.ContractStatus{enums.ContractStatusDraft},
			map[string]any{
				"status":     enums.ContractStatusPendingSignature,
				"sent_at":    now,
				"updated_at": now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send contract")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "contract was modified concurrently")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ContractID: contract.ID,
			Type:       enums.AuditEventSent,
			ActorID:    &actorID,
		}); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractSent,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data:          s.eventPayload(contract, enums.ContractStatusPendingSignature),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, contractID)
}

// Get returns the contract with its signers, expiring it first when the
// expiration date has silently passed.
func (s *service) Get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}

	contract, err := s.load(ctx, s.repo, contractID)
	if err != nil {
		return nil, err
	}

	if contract.Status == enums.ContractStatusPendingSignature && IsExpired(contract, s.now()) {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.ExpireInTx(ctx, tx, contract)
		})
		if err != nil {
			return nil, err
		}
		return s.load(ctx, s.repo, contractID)
	}

	return contract, nil
}

func (s *service) List(ctx context.Context, consultantID uuid.UUID, params pagination.Params) (*ContractPage, error) {
	if consultantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consultant id is required")
	}
	page, err := s.repo.ListByConsultant(ctx, consultantID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contracts")
	}

	// An overdue contract reads as expired even before the sweep has
	// persisted the transition.
	now := s.now()
	for i := range page.Items {
		item := &page.Items[i]
		if item.Status == enums.ContractStatusPendingSignature && IsExpired(item, now) {
			item.Status = enums.ContractStatusExpired
		}
	}
	return page, nil
}

func (s *service) Decline(ctx context.Context, input DeclineInput) (*models.Contract, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := s.load(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}

		if contract.Status == enums.ContractStatusPendingSignature && IsExpired(contract, s.now()) {
			if err := s.ExpireInTx(ctx, tx, contract); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract has expired")
		}
		if err := CheckSignable(contract, s.now()); err != nil {
			return err
		}

		signer, err := SignerForUser(contract.Signers, input.UserID)
		if err != nil {
			return err
		}
		if signer.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "signer already reached a terminal state")
		}

		now := s.now()
		affected, err := repo.UpdateSignerGuarded(ctx, signer.ID, enums.SignerStatusPending, map[string]any{
			"status":         enums.SignerStatusDeclined,
			"declined_at":    now,
			"decline_reason": input.Reason,
			"updated_at":     now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline signer")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "signer was modified concurrently")
		}

		affected, err = repo.UpdateContractGuarded(ctx, contract.ID,
			[]enums.ContractStatus{enums.ContractStatusPendingSignature},
			map[string]any{
				"status":      enums.ContractStatusDeclined,
				"declined_at": now,
				"updated_at":  now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline contract")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "contract was modified concurrently")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ContractID: contract.ID,
			Type:       enums.AuditEventDeclined,
			ActorID:    &input.UserID,
			Details:    map[string]any{"reason": input.Reason},
		}); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractDeclined,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data:          s.eventPayload(contract, enums.ContractStatusDeclined),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, s.repo, input.ContractID)
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Contract, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := s.load(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}

		if contract.Status == enums.ContractStatusPendingSignature && IsExpired(contract, s.now()) {
			if err := s.ExpireInTx(ctx, tx, contract); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract has expired")
		}
		if contract.Status != enums.ContractStatusDraft && contract.Status != enums.ContractStatusPendingSignature {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract cannot be cancelled in its current state")
		}

		now := s.now()
		affected, err := repo.UpdateContractGuarded(ctx, contract.ID,
			[]enums.ContractStatus{enums.ContractStatusDraft, enums.ContractStatusPendingSignature},
			map[string]any{
				"status":       enums.ContractStatusCancelled,
				"cancelled_at": now,
				"updated_at":   now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel contract")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "contract was modified concurrently")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ContractID: contract.ID,
			Type:       enums.AuditEventCancelled,
			ActorID:    &input.ActorID,
			Details:    map[string]any{"reason": input.Reason},
		}); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractCancelled,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data:          s.eventPayload(contract, enums.ContractStatusCancelled),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, s.repo, input.ContractID)
}

// ExpireDue sweeps contracts whose expiration date has passed, one
// transaction per contract so a single failure never blocks the batch.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDueForExpiry(ctx, now, expirySweepBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contracts due for expiry")
	}

	expired := 0
	var errs error
	for i := range due {
		contract := due[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.ExpireInTx(ctx, tx, &contract)
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) ExpireInTx(ctx context.Context, tx *gorm.DB, contract *models.Contract) error {
	repo := s.repo.WithTx(tx)
	now := s.now()

	affected, err := repo.UpdateContractGuarded(ctx, contract.ID,
		[]enums.ContractStatus{enums.ContractStatusPendingSignature},
		map[string]any{
			"status":     enums.ContractStatusExpired,
			"expired_at": now,
			"updated_at": now,
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire contract")
	}
	if affected == 0 {
		// A competing transition beat the expiry; nothing to record.
		return nil
	}

	if err := s.audit.Record(ctx, tx, audit.Entry{
		ContractID: contract.ID,
		Type:       enums.AuditEventExpired,
		Details:    map[string]any{"expiration_date": contract.ExpirationDate},
	}); err != nil {
		return err
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventContractExpired,
		AggregateType: enums.AggregateContract,
		AggregateID:   contract.ID,
		Version:       1,
		Data:          s.eventPayload(contract, enums.ContractStatusExpired),
	})
}

func (s *service) AdvanceOnSignature(ctx context.Context, tx *gorm.DB, contract *models.Contract, signers []models.Signer, target *models.Signer, signedAt time.Time) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	affected, err := repo.UpdateSignerGuarded(ctx, target.ID, enums.SignerStatusPending, map[string]any{
		"status":     enums.SignerStatusSigned,
		"signed_at":  signedAt,
		"updated_at": signedAt,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark signer signed")
	}
	if affected == 0 {
		return false, pkgerrors.New(pkgerrors.CodeConflict, "signer was modified concurrently")
	}

	if err := s.audit.Record(ctx, tx, audit.Entry{
		ContractID: contract.ID,
		Type:       enums.AuditEventSigned,
		ActorID:    &target.UserID,
		Details:    map[string]any{"signer_role": target.Role},
	}); err != nil {
		return false, err
	}

	if !IsLastPendingSigner(signers, target) {
		return false, nil
	}

	affected, err = repo.UpdateContractGuarded(ctx, contract.ID,
		[]enums.ContractStatus{enums.ContractStatusPendingSignature},
		map[string]any{
			"status":       enums.ContractStatusCompleted,
			"completed_at": signedAt,
			"updated_at":   signedAt,
		})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete contract")
	}
	if affected == 0 {
		return false, pkgerrors.New(pkgerrors.CodeConflict, "contract was modified concurrently")
	}

	if err := s.audit.Record(ctx, tx, audit.Entry{
		ContractID: contract.ID,
		Type:       enums.AuditEventCompleted,
		ActorID:    &target.UserID,
	}); err != nil {
		return false, err
	}

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventContractCompleted,
		AggregateType: enums.AggregateContract,
		AggregateID:   contract.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: target.UserID},
		Data:          s.eventPayload(contract, enums.ContractStatusCompleted),
	}); err != nil {
		return false, err
	}

	return true, nil
}

func (s *service) load(ctx context.Context, repo Repository, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := repo.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	return contract, nil
}

func (s *service) eventPayload(contract *models.Contract, status enums.ContractStatus) ContractEvent {
	return ContractEvent{
		ContractID:   contract.ID,
		Number:       contract.Number,
		Title:        contract.Title,
		Status:       status,
		ConsultantID: contract.ConsultantID,
		ProjectID:    contract.ProjectID,
	}
}
