package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/pkg/enums"
)

// Signer is one required participant on a contract. The set of signers
// is fixed at contract creation from the template's signer roles and is
// never mutated afterwards; only Status and the decision timestamps move.
type Signer struct {
	ID            uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	UserID        uuid.UUID          `gorm:"type:uuid;not null"`
	Role          string             `gorm:"type:text;not null"`
	SigningOrder  int                `gorm:"not null"`
	Status        enums.SignerStatus `gorm:"type:signer_status;not null;default:'pending'"`
	SignedAt      *time.Time         `gorm:"type:timestamptz"`
	DeclinedAt    *time.Time         `gorm:"type:timestamptz"`
	DeclineReason *string            `gorm:"type:text"`
	CreatedAt     time.Time          `gorm:"type:timestamptz;default:now()"`
	UpdatedAt     time.Time          `gorm:"type:timestamptz;default:now()"`
}
