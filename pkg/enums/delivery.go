package enums

import (
	"fmt"
	"strings"
)

// DeliveryMethod is the shipping option chosen at checkout.
type DeliveryMethod string

const (
	DeliveryMethodPickup     DeliveryMethod = "pickup"
	DeliveryMethodNegotiated DeliveryMethod = "negotiated"
	DeliveryMethodStandard   DeliveryMethod = "standard"
	DeliveryMethodSemiTruck  DeliveryMethod = "semi-truck"
	DeliveryMethodTruck      DeliveryMethod = "truck"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodPickup,
	DeliveryMethodNegotiated,
	DeliveryMethodStandard,
	DeliveryMethodSemiTruck,
	DeliveryMethodTruck,
}

func (d DeliveryMethod) String() string {
	return string(d)
}

func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}

// VerificationStatus is the identity verification state of a client account.
type VerificationStatus string

const (
	VerificationStatusNone     VerificationStatus = "none"
	VerificationStatusRequired VerificationStatus = "required"
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusApproved VerificationStatus = "approved"
	VerificationStatusRejected VerificationStatus = "rejected"
)

// BlocksPurchase reports whether the status prevents checkout.
func (v VerificationStatus) BlocksPurchase() bool {
	switch v {
	case VerificationStatusRequired, VerificationStatusPending, VerificationStatusRejected:
		return true
	}
	return false
}
