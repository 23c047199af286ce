package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate binds a signature to the exact contract content that was
// signed. ContentHash is computed over the immutable content snapshot;
// recomputing it from the stored contract must always match.
type Certificate struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID  uuid.UUID `gorm:"type:uuid;not null;index"`
	SignatureID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Number      string    `gorm:"type:text;not null;uniqueIndex"`
	ContentHash string    `gorm:"type:text;not null"`
	IssuedAt    time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;default:now()"`
}
