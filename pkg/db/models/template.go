package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/pkg/enums"
)

// Template is a reusable contract body with named placeholders and the
// ordered signer roles a contract instantiated from it must carry.
// Contracts snapshot the content at creation time; editing a template
// bumps Version and never touches existing contracts.
type Template struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string             `gorm:"type:text;not null"`
	Type         enums.TemplateType `gorm:"type:template_type;not null"`
	Content      string             `gorm:"type:text;not null"`
	Placeholders []string           `gorm:"type:jsonb;serializer:json;not null"`
	SignerRoles  []string           `gorm:"type:jsonb;serializer:json;not null"`
	Active       bool               `gorm:"not null;default:true"`
	Version      int                `gorm:"not null;default:1"`
	CreatedAt    time.Time          `gorm:"type:timestamptz;default:now()"`
	UpdatedAt    time.Time          `gorm:"type:timestamptz;default:now()"`
}
