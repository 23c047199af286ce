package enums

import "fmt"

// SignerStatus maps to the signer_status enum in Postgres.
type SignerStatus string

const (
	SignerStatusPending  SignerStatus = "pending"
	SignerStatusSigned   SignerStatus = "signed"
	SignerStatusDeclined SignerStatus = "declined"
)

var validSignerStatuses = []SignerStatus{
	SignerStatusPending,
	SignerStatusSigned,
	SignerStatusDeclined,
}

// IsValid checks whether the given status matches the canonical enum.
func (s SignerStatus) IsValid() bool {
	for _, candidate := range validSignerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the signer has reached a final decision.
func (s SignerStatus) IsTerminal() bool {
	return s == SignerStatusSigned || s == SignerStatusDeclined
}

// ParseSignerStatus converts raw strings into SignerStatus.
func ParseSignerStatus(value string) (SignerStatus, error) {
	for _, candidate := range validSignerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid signer status %q", value)
}
