package enums

import "fmt"

// RecipientMode says who receives the order.
type RecipientMode string

const (
	RecipientModeSelf       RecipientMode = "self"
	RecipientModeThirdParty RecipientMode = "third_party"
)

var validRecipientModes = []RecipientMode{
	RecipientModeSelf,
	RecipientModeThirdParty,
}

// String implements fmt.Stringer.
func (m RecipientMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known RecipientMode.
func (m RecipientMode) IsValid() bool {
	for _, candidate := range validRecipientModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseRecipientMode converts raw input into a RecipientMode.
func ParseRecipientMode(value string) (RecipientMode, error) {
	for _, candidate := range validRecipientModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recipient mode %q", value)
}
