package enums

import "fmt"

// TemplateType maps to the template_type enum in Postgres.
type TemplateType string

const (
	TemplateTypeICA     TemplateType = "ica"
	TemplateTypeNDA     TemplateType = "nda"
	TemplateTypeSOW     TemplateType = "sow"
	TemplateTypeGeneral TemplateType = "general"
)

var validTemplateTypes = []TemplateType{
	TemplateTypeICA,
	TemplateTypeNDA,
	TemplateTypeSOW,
	TemplateTypeGeneral,
}

// IsValid checks whether the given type matches the canonical enum.
func (t TemplateType) IsValid() bool {
	for _, candidate := range validTemplateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTemplateType converts raw strings into TemplateType.
func ParseTemplateType(value string) (TemplateType, error) {
	for _, candidate := range validTemplateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid template type %q", value)
}
