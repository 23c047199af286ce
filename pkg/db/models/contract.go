package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/pkg/enums"
)

// Contract is an instantiated agreement. Content is the fully resolved
// snapshot taken from the template at creation time and is never
// re-rendered afterwards; certificates hash exactly these bytes.
type Contract struct {
	ID              uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Number          string               `gorm:"type:text;not null;uniqueIndex"`
	TemplateID      uuid.UUID            `gorm:"type:uuid;not null"`
	TemplateVersion int                  `gorm:"not null"`
	Title           string               `gorm:"type:text;not null"`
	Content         string               `gorm:"type:text;not null"`
	ConsultantID    uuid.UUID            `gorm:"type:uuid;not null"`
	ProjectID       uuid.UUID            `gorm:"type:uuid;not null"`
	SigningPolicy   enums.SigningPolicy  `gorm:"type:signing_policy;not null"`
	Status          enums.ContractStatus `gorm:"type:contract_status;not null;default:'draft'"`
	EffectiveDate   time.Time            `gorm:"type:timestamptz;not null"`
	ExpirationDate  time.Time            `gorm:"type:timestamptz;not null"`
	CreatedBy       uuid.UUID            `gorm:"type:uuid;not null"`
	SentAt          *time.Time           `gorm:"type:timestamptz"`
	CompletedAt     *time.Time           `gorm:"type:timestamptz"`
	DeclinedAt      *time.Time           `gorm:"type:timestamptz"`
	ExpiredAt       *time.Time           `gorm:"type:timestamptz"`
	CancelledAt     *time.Time           `gorm:"type:timestamptz"`
	CreatedAt       time.Time            `gorm:"type:timestamptz;default:now()"`
	UpdatedAt       time.Time            `gorm:"type:timestamptz;default:now()"`

	Signers []Signer `gorm:"foreignKey:ContractID"`
}
