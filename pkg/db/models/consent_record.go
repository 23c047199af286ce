package models

import (
	"time"

	"github.com/google/uuid"
)

// ConsentRecord stores the ESIGN-style disclosure acknowledgements a
// signer affirmed before signing. One row per (contract, user); all
// three acknowledgements must be true for the record to gate signing.
type ConsentRecord struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_consent_contract_user"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_consent_contract_user"`
	AckHardwareAccess bool      `gorm:"not null"`
	AckPaperCopy      bool      `gorm:"not null"`
	AckWithdrawRight  bool      `gorm:"not null"`
	ConsentedAt       time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt         time.Time `gorm:"type:timestamptz;default:now()"`
	UpdatedAt         time.Time `gorm:"type:timestamptz;default:now()"`
}
