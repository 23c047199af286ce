package models

import (
	"time"

	"github.com/google/uuid"
)

// Signature is the captured signing act for one signer. MarkRef points
// at the stroke/image blob in external object storage; the core never
// stores the mark bytes themselves.
type Signature struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID          uuid.UUID `gorm:"type:uuid;not null;index"`
	SignerID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	MarkRef             string    `gorm:"type:text;not null"`
	TypedName           string    `gorm:"type:text;not null"`
	AgreedToTerms       bool      `gorm:"not null"`
	IntendedAsSignature bool      `gorm:"not null"`
	SignedAt            time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt           time.Time `gorm:"type:timestamptz;default:now()"`
}
