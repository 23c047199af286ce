package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/pkg/enums"
)

// AuditEvent is one append-only entry in a contract's lifecycle log.
// Rows are never updated or deleted; the autoincrement ID doubles as
// the tie-breaker when timestamps collide.
type AuditEvent struct {
	ID         int64                `gorm:"primaryKey;autoIncrement"`
	ContractID uuid.UUID            `gorm:"type:uuid;not null;index"`
	Type       enums.AuditEventType `gorm:"type:audit_event_type;not null"`
	ActorID    *uuid.UUID           `gorm:"type:uuid"`
	Details    map[string]any       `gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time            `gorm:"type:timestamptz;default:now()"`
}
