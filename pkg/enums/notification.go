package enums

import "fmt"

// NotificationType is the kind of in-app notification delivered to an account.
type NotificationType string

const (
	NotificationTypeNewNegotiation       NotificationType = "new_negotiation"
	NotificationTypeCounterOffer         NotificationType = "counter_offer"
	NotificationTypeOfferAccepted        NotificationType = "offer_accepted"
	NotificationTypeOfferRejected        NotificationType = "offer_rejected"
	NotificationTypeNegotiationExpired   NotificationType = "negotiation_expired"
	NotificationTypeNegotiationCancelled NotificationType = "negotiation_cancelled"
	NotificationTypeNegotiationExpiring  NotificationType = "negotiation_expiring"
	NotificationTypeOrderPlaced          NotificationType = "order_placed"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeNewNegotiation,
	NotificationTypeCounterOffer,
	NotificationTypeOfferAccepted,
	NotificationTypeOfferRejected,
	NotificationTypeNegotiationExpired,
	NotificationTypeNegotiationCancelled,
	NotificationTypeNegotiationExpiring,
	NotificationTypeOrderPlaced,
}

// IsValid checks whether the given type is known.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
