package enums

import "fmt"

// RecipientRole partitions staff recipients for order dispatch.
type RecipientRole string

const (
	RecipientRoleKitchen  RecipientRole = "kitchen"
	RecipientRoleDelivery RecipientRole = "delivery"
	RecipientRoleObserver RecipientRole = "observer"
)

var validRecipientRoles = []RecipientRole{
	RecipientRoleKitchen,
	RecipientRoleDelivery,
	RecipientRoleObserver,
}

// String implements fmt.Stringer.
func (r RecipientRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RecipientRole.
func (r RecipientRole) IsValid() bool {
	for _, candidate := range validRecipientRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecipientRole converts raw input into a RecipientRole.
func ParseRecipientRole(value string) (RecipientRole, error) {
	for _, candidate := range validRecipientRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recipient role %q", value)
}
