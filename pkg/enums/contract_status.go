package enums

import "fmt"

// ContractStatus maps to the contract_status enum in Postgres.
type ContractStatus string

const (
	ContractStatusDraft            ContractStatus = "draft"
	ContractStatusPendingSignature ContractStatus = "pending_signature"
	ContractStatusCompleted        ContractStatus = "completed"
	ContractStatusDeclined         ContractStatus = "declined"
	ContractStatusExpired          ContractStatus = "expired"
	ContractStatusCancelled        ContractStatus = "cancelled"
)

var validContractStatuses = []ContractStatus{
	ContractStatusDraft,
	ContractStatusPendingSignature,
	ContractStatusCompleted,
	ContractStatusDeclined,
	ContractStatusExpired,
	ContractStatusCancelled,
}

// IsValid checks whether the given status matches the canonical enum.
func (c ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (c ContractStatus) IsTerminal() bool {
	switch c {
	case ContractStatusCompleted, ContractStatusDeclined, ContractStatusExpired, ContractStatusCancelled:
		return true
	}
	return false
}

// ParseContractStatus converts raw strings into ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}
