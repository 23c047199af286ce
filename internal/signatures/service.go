package signatures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/pkg/contenthash"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type consentChecker interface {
	HasConsent(ctx context.Context, contractID, userID uuid.UUID) (bool, error)
}

type reviewChecker interface {
	IsComplete(ctx context.Context, contractID, userID uuid.UUID) (bool, error)
}

// contractFlow is the slice of the contracts service the signing
// transaction drives.
type contractFlow interface {
	AdvanceOnSignature(ctx context.Context, tx *gorm.DB, contract *models.Contract, signers []models.Signer, target *models.Signer, signedAt time.Time) (bool, error)
	ExpireInTx(ctx context.Context, tx *gorm.DB, contract *models.Contract) error
}

// SubmitInput carries one signer's signing act. MarkRef points at the
// captured mark in object storage; the engine never sees the bytes.
type SubmitInput struct {
	ContractID          uuid.UUID
	UserID              uuid.UUID
	MarkRef             string
	TypedName           string
	AgreedToTerms       bool
	IntendedAsSignature bool
}

// SubmitResult is the outcome of a successful signature submission.
type SubmitResult struct {
	Signature         *models.Signature
	Certificate       *models.Certificate
	ContractCompleted bool
}

// VerificationResult reports whether a certificate still matches the
// contract content it was issued against.
type VerificationResult struct {
	Certificate *models.Certificate
	Valid       bool
	CurrentHash string
}

// Service captures signatures and issues completion certificates. Every
// gate (state, order, consent, review) and the resulting writes run in
// one transaction.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	GetCertificate(ctx context.Context, number string) (*models.Certificate, error)
	ListCertificates(ctx context.Context, contractID uuid.UUID) ([]models.Certificate, error)
	Verify(ctx context.Context, number string) (*VerificationResult, error)
}

// ServiceParams groups dependencies for the signatures service.
type ServiceParams struct {
	Repo      Repository
	Contracts contracts.Repository
	Flow      contractFlow
	Consent   consentChecker
	Review    reviewChecker
	Tx        txRunner
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	contracts contracts.Repository
	flow      contractFlow
	consent   consentChecker
	review    reviewChecker
	tx        txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a signatures service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signatures repo is required")
	}
	if params.Contracts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contracts repo is required")
	}
	if params.Flow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract flow is required")
	}
	if params.Consent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consent checker is required")
	}
	if params.Review == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review checker is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	return &service{
		repo:      params.Repo,
		contracts: params.Contracts,
		flow:      params.Flow,
		consent:   params.Consent,
		review:    params.Review,
		tx:        params.Tx,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.AgreedToTerms || !input.IntendedAsSignature {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signer must agree to the terms and intend the mark as a signature")
	}
	if strings.TrimSpace(input.TypedName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "typed name is required")
	}
	if strings.TrimSpace(input.MarkRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature mark reference is required")
	}

	var result SubmitResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		contractsRepo := s.contracts.WithTx(tx)

		contract, err := contractsRepo.FindByID(ctx, input.ContractID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "contract not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
		}

		now := s.now()
		if contract.Status == enums.ContractStatusPendingSignature && contracts.IsExpired(contract, now) {
			if err := s.flow.ExpireInTx(ctx, tx, contract); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract has expired")
		}
		if err := contracts.CheckSignable(contract, now); err != nil {
			return err
		}

		signer, err := contracts.SignerForUser(contract.Signers, input.UserID)
		if err != nil {
			return err
		}
		if signer.Status == enums.SignerStatusSigned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "signer has already signed this contract")
		}
		if signer.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "signer already reached a terminal state")
		}
		if err := contracts.CheckSigningOrder(contract.SigningPolicy, contract.Signers, signer); err != nil {
			return err
		}

		ok, err := s.consent.HasConsent(ctx, contract.ID, input.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConsentRequired, "electronic signature consent has not been recorded")
		}

		ok, err = s.review.IsComplete(ctx, contract.ID, input.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeReviewRequired, "document review has not been completed")
		}

		repo := s.repo.WithTx(tx)
		signature := &models.Signature{
			ID:                  uuid.New(),
			ContractID:          contract.ID,
			SignerID:            signer.ID,
			MarkRef:             input.MarkRef,
			TypedName:           strings.TrimSpace(input.TypedName),
			AgreedToTerms:       input.AgreedToTerms,
			IntendedAsSignature: input.IntendedAsSignature,
			SignedAt:            now,
		}
		if err := repo.CreateSignature(ctx, signature); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create signature")
		}

		certificate := &models.Certificate{
			ID:          uuid.New(),
			ContractID:  contract.ID,
			SignatureID: signature.ID,
			Number:      certificateNumber(now),
			ContentHash: contenthash.SumText(contract.Content),
			IssuedAt:    now,
		}
		if err := repo.CreateCertificate(ctx, certificate); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create certificate")
		}

		completed, err := s.flow.AdvanceOnSignature(ctx, tx, contract, contract.Signers, signer, now)
		if err != nil {
			return err
		}

		result = SubmitResult{Signature: signature, Certificate: certificate, ContractCompleted: completed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"contract_id": input.ContractID.String(),
			"certificate": result.Certificate.Number,
			"completed":   result.ContractCompleted,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "signature captured")
	}
	return &result, nil
}

func (s *service) GetCertificate(ctx context.Context, number string) (*models.Certificate, error) {
	if strings.TrimSpace(number) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "certificate number is required")
	}
	certificate, err := s.repo.FindCertificateByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "certificate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate")
	}
	return certificate, nil
}

func (s *service) ListCertificates(ctx context.Context, contractID uuid.UUID) ([]models.Certificate, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	certificates, err := s.repo.ListCertificatesByContract(ctx, contractID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list certificates")
	}
	return certificates, nil
}

// Verify recomputes the content hash from the stored contract and
// compares it with the hash frozen into the certificate.
func (s *service) Verify(ctx context.Context, number string) (*VerificationResult, error) {
	certificate, err := s.GetCertificate(ctx, number)
	if err != nil {
		return nil, err
	}

	contract, err := s.contracts.FindByID(ctx, certificate.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}

	currentHash := contenthash.SumText(contract.Content)
	return &VerificationResult{
		Certificate: certificate,
		Valid:       currentHash == certificate.ContentHash,
		CurrentHash: currentHash,
	}, nil
}

func certificateNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("CERT-%d-%s", now.UnixMilli(), suffix)
}
