package enums

import "fmt"

// SigningPolicy controls whether signers must act strictly in order.
type SigningPolicy string

const (
	// SigningPolicySequential allows a signer to sign only after every
	// signer with a lower signing order has signed.
	SigningPolicySequential SigningPolicy = "sequential"
	// SigningPolicyParallel allows any pending signer to sign at any time.
	SigningPolicyParallel SigningPolicy = "parallel"
)

var validSigningPolicies = []SigningPolicy{
	SigningPolicySequential,
	SigningPolicyParallel,
}

// IsValid checks whether the given policy matches the canonical enum.
func (p SigningPolicy) IsValid() bool {
	for _, candidate := range validSigningPolicies {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseSigningPolicy converts raw strings into SigningPolicy.
func ParseSigningPolicy(value string) (SigningPolicy, error) {
	for _, candidate := range validSigningPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid signing policy %q", value)
}
