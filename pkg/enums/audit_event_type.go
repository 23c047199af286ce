package enums

import "fmt"

// AuditEventType maps to the audit_event_type enum in Postgres.
type AuditEventType string

const (
	AuditEventCreated         AuditEventType = "created"
	AuditEventSent            AuditEventType = "sent"
	AuditEventConsentRecorded AuditEventType = "consent_recorded"
	AuditEventReviewStarted   AuditEventType = "review_started"
	AuditEventReviewCompleted AuditEventType = "review_completed"
	AuditEventSigned          AuditEventType = "signed"
	AuditEventDeclined        AuditEventType = "declined"
	AuditEventCompleted       AuditEventType = "completed"
	AuditEventExpired         AuditEventType = "expired"
	AuditEventCancelled       AuditEventType = "cancelled"
)

var validAuditEventTypes = []AuditEventType{
	AuditEventCreated,
	AuditEventSent,
	AuditEventConsentRecorded,
	AuditEventReviewStarted,
	AuditEventReviewCompleted,
	AuditEventSigned,
	AuditEventDeclined,
	AuditEventCompleted,
	AuditEventExpired,
	AuditEventCancelled,
}

// IsValid checks whether the given type matches the canonical enum.
func (a AuditEventType) IsValid() bool {
	for _, candidate := range validAuditEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditEventType converts raw strings into AuditEventType.
func ParseAuditEventType(value string) (AuditEventType, error) {
	for _, candidate := range validAuditEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit event type %q", value)
}
