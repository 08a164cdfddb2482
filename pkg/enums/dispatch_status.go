package enums

import "fmt"

// DispatchStatus tracks the lifecycle of an order dispatch row.
type DispatchStatus string

const (
	DispatchStatusPending    DispatchStatus = "pending"
	DispatchStatusInProgress DispatchStatus = "in_progress"
	DispatchStatusDelivered  DispatchStatus = "delivered"
	DispatchStatusExpired    DispatchStatus = "expired"
)

var validDispatchStatuses = []DispatchStatus{
	DispatchStatusPending,
	DispatchStatusInProgress,
	DispatchStatusDelivered,
	DispatchStatusExpired,
}

// String implements fmt.Stringer.
func (d DispatchStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DispatchStatus.
func (d DispatchStatus) IsValid() bool {
	for _, candidate := range validDispatchStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (d DispatchStatus) IsTerminal() bool {
	return d == DispatchStatusDelivered || d == DispatchStatusExpired
}

// CanTransitionTo reports whether the transition d -> next is allowed.
func (d DispatchStatus) CanTransitionTo(next DispatchStatus) bool {
	switch d {
	case DispatchStatusPending:
		return next == DispatchStatusInProgress || next == DispatchStatusExpired
	case DispatchStatusInProgress:
		return next == DispatchStatusDelivered || next == DispatchStatusExpired
	default:
		return false
	}
}

// ParseDispatchStatus converts raw input into a DispatchStatus.
func ParseDispatchStatus(value string) (DispatchStatus, error) {
	for _, candidate := range validDispatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispatch status %q", value)
}
