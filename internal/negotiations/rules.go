package negotiations

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// LastOffer returns the newest offer, or nil when the history is empty.
func LastOffer(n *models.Negotiation) *models.NegotiationOffer {
	if n == nil || len(n.Offers) == 0 {
		return nil
	}
	last := n.Offers[0]
	for _, offer := range n.Offers[1:] {
		if offer.Seq > last.Seq {
			last = offer
		}
	}
	return &last
}

// lastAuthor is the uid that must wait for the other side. The buyer counts
// as the author of the opening proposal when no offer row exists.
func lastAuthor(n *models.Negotiation) string {
	if last := LastOffer(n); last != nil {
		return last.FromUID
	}
	return n.BuyerUID
}

// IsExpired reports whether the deadline has passed at now.
func IsExpired(n *models.Negotiation, now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// LogicalStatus is the status a reader should act on: a stored active status
// past the deadline reads as expired.
func LogicalStatus(n *models.Negotiation, now time.Time) enums.NegotiationStatus {
	if n.Status == enums.NegotiationStatusActive && IsExpired(n, now) {
		return enums.NegotiationStatusExpired
	}
	return n.Status
}

func IsParticipant(n *models.Negotiation, uid string) bool {
	return uid != "" && (uid == n.BuyerUID || uid == n.SellerUID)
}

// RoleOf returns the side uid plays in the negotiation.
func RoleOf(n *models.Negotiation, uid string) (enums.OfferRole, bool) {
	switch uid {
	case "":
		return "", false
	case n.BuyerUID:
		return enums.OfferRoleBuyer, true
	case n.SellerUID:
		return enums.OfferRoleSeller, true
	}
	return "", false
}

// CanMakeCounterOffer holds while the negotiation is live and the last offer
// came from the other side.
func CanMakeCounterOffer(n *models.Negotiation, uid string, now time.Time) bool {
	return n.Status == enums.NegotiationStatusActive &&
		!IsExpired(n, now) &&
		IsParticipant(n, uid) &&
		lastAuthor(n) != uid
}

// CanAcceptOffer mirrors CanMakeCounterOffer: only the side that did not make
// the last offer may respond to it.
func CanAcceptOffer(n *models.Negotiation, uid string, now time.Time) bool {
	return CanMakeCounterOffer(n, uid, now)
}

func CanRejectOffer(n *models.Negotiation, uid string, now time.Time) bool {
	return CanMakeCounterOffer(n, uid, now)
}

// Participant describes the caller relative to a negotiation.
type Participant struct {
	Role             enums.OfferRole `json:"role"`
	IsBuyer          bool            `json:"is_buyer"`
	CounterpartyUID  string          `json:"counterparty_uid"`
	CounterpartyRole enums.OfferRole `json:"counterparty_role"`
}

// ParticipantInfo classifies uid as buyer or seller and names the other side.
func ParticipantInfo(n *models.Negotiation, uid string) (Participant, bool) {
	role, ok := RoleOf(n, uid)
	if !ok {
		return Participant{}, false
	}
	p := Participant{Role: role, IsBuyer: role == enums.OfferRoleBuyer, CounterpartyRole: role.Counterparty()}
	if p.IsBuyer {
		p.CounterpartyUID = n.SellerUID
	} else {
		p.CounterpartyUID = n.BuyerUID
	}
	return p, true
}

// EffectivePrice is the frozen price after acceptance, otherwise the latest offer.
func EffectivePrice(n *models.Negotiation) decimal.Decimal {
	if n.FinalPrice != nil {
		return *n.FinalPrice
	}
	if last := LastOffer(n); last != nil {
		return last.Price
	}
	return n.ProposedPrice
}

func EffectiveQuantity(n *models.Negotiation) int {
	if n.FinalQuantity != nil {
		return *n.FinalQuantity
	}
	if last := LastOffer(n); last != nil {
		return last.Quantity
	}
	return n.Quantity
}

func EffectiveTotal(n *models.Negotiation) decimal.Decimal {
	if n.FinalTotalAmount != nil {
		return *n.FinalTotalAmount
	}
	return EffectivePrice(n).Mul(decimal.NewFromInt(int64(EffectiveQuantity(n)))).Round(2)
}

// Savings compares the current price with the list price.
type Savings struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage string          `json:"percentage"`
	IsDiscount bool            `json:"is_discount"`
}

// CalculateSavings reports the per-unit difference to the list price. A zero
// list price reports 0.0%.
func CalculateSavings(original, current decimal.Decimal) Savings {
	amount := original.Sub(current)
	pct := "0.0"
	if !original.IsZero() {
		pct = amount.Div(original).Mul(hundred).StringFixed(1)
	}
	return Savings{Amount: amount, Percentage: pct, IsDiscount: amount.IsPositive()}
}

// FormatTimeRemaining renders the time left at the two coarsest units.
func FormatTimeRemaining(expiresAt, now time.Time) string {
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return "Expired"
	}
	days := int(diff / (24 * time.Hour))
	hours := int(diff % (24 * time.Hour) / time.Hour)
	minutes := int(diff % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh left", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm left", hours, minutes)
	default:
		return fmt.Sprintf("%dm left", minutes)
	}
}

// IsNearExpiry holds when the deadline is still ahead but within threshold.
func IsNearExpiry(expiresAt, now time.Time, threshold time.Duration) bool {
	remaining := expiresAt.Sub(now)
	return remaining > 0 && remaining <= threshold
}
