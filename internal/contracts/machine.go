package contracts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
)

// SignerForUser resolves the signer row for the acting user. An
// authenticated user with no signer row on the contract cannot act on it.
func SignerForUser(signers []models.Signer, userID uuid.UUID) (*models.Signer, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	for i := range signers {
		if signers[i].UserID == userID {
			return &signers[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "acting user is not a signer on this contract")
}

// IsExpired reports whether the expiration date has passed. Expiration is
// evaluated at every entry point; the sweep job persists what this
// predicate already decided.
func IsExpired(contract *models.Contract, now time.Time) bool {
	return !contract.ExpirationDate.IsZero() && now.After(contract.ExpirationDate)
}

// CheckSignable verifies the contract accepts signing actions right now.
func CheckSignable(contract *models.Contract, now time.Time) error {
	if IsExpired(contract, now) && contract.Status == enums.ContractStatusPendingSignature {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "contract has expired")
	}
	if contract.Status != enums.ContractStatusPendingSignature {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "contract is not awaiting signatures")
	}
	return nil
}

// CheckSigningOrder enforces the sequential policy: every signer ordered
// before the target must already be signed. Equal orders break ties by
// id so the sequence stays deterministic. Parallel policy admits any
// pending signer.
func CheckSigningOrder(policy enums.SigningPolicy, signers []models.Signer, target *models.Signer) error {
	if policy != enums.SigningPolicySequential {
		return nil
	}
	for i := range signers {
		other := &signers[i]
		if other.ID == target.ID {
			continue
		}
		before := other.SigningOrder < target.SigningOrder ||
			(other.SigningOrder == target.SigningOrder &&
				strings.Compare(other.ID.String(), target.ID.String()) < 0)
		if before && other.Status != enums.SignerStatusSigned {
			return pkgerrors.New(pkgerrors.CodeOutOfOrder, "an earlier signer has not signed yet")
		}
	}
	return nil
}

// IsLastPendingSigner reports whether target is the only signer still
// pending. The caller flips the contract to completed in the same
// transaction as the signer update when this is true.
func IsLastPendingSigner(signers []models.Signer, target *models.Signer) bool {
	for i := range signers {
		other := &signers[i]
		if other.ID == target.ID {
			continue
		}
		if other.Status != enums.SignerStatusSigned {
			return false
		}
	}
	return true
}
