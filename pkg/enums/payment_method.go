package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is how the buyer pays for a negotiated order.
type PaymentMethod string

const (
	PaymentMethodCOD            PaymentMethod = "cod"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodMobileBanking  PaymentMethod = "mobile-banking"
	PaymentMethodBankTransfer   PaymentMethod = "bank-transfer"
	defaultCheckoutPaymentMethod              = PaymentMethodCOD
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodCard,
	PaymentMethodMobileBanking,
	PaymentMethodBankTransfer,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsOnline reports whether the method is charged through the payment gateway.
func (p PaymentMethod) IsOnline() bool {
	return p.IsValid() && p != PaymentMethodCOD
}

// ParsePaymentMethod converts raw input; empty input defaults to cash on delivery.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return defaultCheckoutPaymentMethod, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// PaymentStatus tracks the payment state of a negotiated order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (p PaymentStatus) String() string {
	return string(p)
}

// OrderStatus tracks an order created from a negotiation.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (o OrderStatus) String() string {
	return string(o)
}
