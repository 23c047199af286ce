package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewSession tracks how far a signer has scrolled through the
// document. Progress only moves forward; Completed flips once the
// configured threshold is reached and never flips back.
type ReviewSession struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_review_contract_user"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_review_contract_user"`
	Progress    int        `gorm:"not null;default:0"`
	Completed   bool       `gorm:"not null;default:false"`
	StartedAt   time.Time  `gorm:"type:timestamptz;not null"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;default:now()"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;default:now()"`
}
