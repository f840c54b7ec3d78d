package enums

import "fmt"

// DeliveryMethod maps to the delivery_method_enum enum in Postgres.
type DeliveryMethod string

const (
	DeliveryMethodPickup               DeliveryMethod = "pickup"
	DeliveryMethodPersonalDelivery     DeliveryMethod = "personal_delivery"
	DeliveryMethodProfessionalDelivery DeliveryMethod = "professional_delivery"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodPickup,
	DeliveryMethodPersonalDelivery,
	DeliveryMethodProfessionalDelivery,
}

// IsValid reports whether the value matches the canonical delivery method enum.
func (m DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsDelivery reports whether the order reaches the buyer via a courier leg
// rather than a pickup.
func (m DeliveryMethod) IsDelivery() bool {
	return m == DeliveryMethodPersonalDelivery || m == DeliveryMethodProfessionalDelivery
}

// Leg returns the confirmation leg the method settles through.
func (m DeliveryMethod) Leg() ConfirmationLeg {
	if m.IsDelivery() {
		return ConfirmationLegDelivery
	}
	return ConfirmationLegPickup
}

// ParseDeliveryMethod converts raw input into DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}

// ConfirmationLeg identifies which handoff leg a confirmation applies to.
type ConfirmationLeg string

const (
	ConfirmationLegPickup   ConfirmationLeg = "pickup"
	ConfirmationLegDelivery ConfirmationLeg = "delivery"
)

// IsValid reports whether the leg is one of the two handoff legs.
func (l ConfirmationLeg) IsValid() bool {
	return l == ConfirmationLegPickup || l == ConfirmationLegDelivery
}

// ParseConfirmationLeg converts raw input into ConfirmationLeg.
func ParseConfirmationLeg(value string) (ConfirmationLeg, error) {
	leg := ConfirmationLeg(value)
	if !leg.IsValid() {
		return "", fmt.Errorf("invalid confirmation leg %q", value)
	}
	return leg, nil
}
