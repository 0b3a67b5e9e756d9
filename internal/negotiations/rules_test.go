package negotiations

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

var ruleNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ruleNegotiation(offers ...models.NegotiationOffer) *models.Negotiation {
	return &models.Negotiation{
		ID:            uuid.New(),
		BuyerUID:      "buyer-1",
		BuyerRole:     enums.AccountRoleClient,
		SellerUID:     "vendor-1",
		Quantity:      5,
		ProposedPrice: decimal.NewFromInt(80),
		OriginalPrice: decimal.NewFromInt(100),
		Status:        enums.NegotiationStatusActive,
		ExpiresAt:     ruleNow.Add(48 * time.Hour),
		Offers:        offers,
	}
}

func offer(seq int, uid string, role enums.OfferRole, price int64, qty int) models.NegotiationOffer {
	return models.NegotiationOffer{Seq: seq, FromUID: uid, FromRole: role, Price: decimal.NewFromInt(price), Quantity: qty}
}

func TestLastOfferUsesHighestSeq(t *testing.T) {
	n := ruleNegotiation(
		offer(1, "vendor-1", enums.OfferRoleSeller, 90, 5),
		offer(0, "buyer-1", enums.OfferRoleBuyer, 80, 5),
	)
	last := LastOffer(n)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Seq)
	assert.Nil(t, LastOffer(ruleNegotiation()))
}

func TestTurnPredicates(t *testing.T) {
	n := ruleNegotiation(offer(0, "buyer-1", enums.OfferRoleBuyer, 80, 5))

	assert.False(t, CanMakeCounterOffer(n, "buyer-1", ruleNow))
	assert.False(t, CanAcceptOffer(n, "buyer-1", ruleNow))
	assert.True(t, CanMakeCounterOffer(n, "vendor-1", ruleNow))
	assert.True(t, CanAcceptOffer(n, "vendor-1", ruleNow))
	assert.True(t, CanRejectOffer(n, "vendor-1", ruleNow))
	assert.False(t, CanAcceptOffer(n, "stranger", ruleNow))

	n.Offers = append(n.Offers, offer(1, "vendor-1", enums.OfferRoleSeller, 90, 5))
	assert.True(t, CanAcceptOffer(n, "buyer-1", ruleNow))
	assert.False(t, CanAcceptOffer(n, "vendor-1", ruleNow))
}

func TestPredicatesFalseOnceExpiredOrTerminal(t *testing.T) {
	n := ruleNegotiation(offer(0, "buyer-1", enums.OfferRoleBuyer, 80, 5))
	assert.False(t, CanAcceptOffer(n, "vendor-1", n.ExpiresAt))
	assert.True(t, IsExpired(n, n.ExpiresAt))
	assert.Equal(t, enums.NegotiationStatusExpired, LogicalStatus(n, n.ExpiresAt))
	assert.Equal(t, enums.NegotiationStatusActive, LogicalStatus(n, n.ExpiresAt.Add(-time.Second)))

	n.Status = enums.NegotiationStatusRejected
	assert.False(t, CanMakeCounterOffer(n, "vendor-1", ruleNow))
	assert.Equal(t, enums.NegotiationStatusRejected, LogicalStatus(n, n.ExpiresAt.Add(time.Hour)))
}

func TestImplicitBuyerTurnWithoutOffers(t *testing.T) {
	n := ruleNegotiation()
	assert.False(t, CanAcceptOffer(n, "buyer-1", ruleNow))
	assert.True(t, CanAcceptOffer(n, "vendor-1", ruleNow))
}

func TestParticipantInfo(t *testing.T) {
	n := ruleNegotiation()
	p, ok := ParticipantInfo(n, "vendor-1")
	require.True(t, ok)
	assert.Equal(t, enums.OfferRoleSeller, p.Role)
	assert.False(t, p.IsBuyer)
	assert.Equal(t, "buyer-1", p.CounterpartyUID)
	assert.Equal(t, enums.OfferRoleBuyer, p.CounterpartyRole)

	_, ok = ParticipantInfo(n, "stranger")
	assert.False(t, ok)
}

func TestEffectiveTermsPreferFinalValues(t *testing.T) {
	n := ruleNegotiation(
		offer(0, "buyer-1", enums.OfferRoleBuyer, 80, 5),
		offer(1, "vendor-1", enums.OfferRoleSeller, 90, 6),
	)
	assert.True(t, EffectivePrice(n).Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 6, EffectiveQuantity(n))
	assert.True(t, EffectiveTotal(n).Equal(decimal.NewFromInt(540)))

	price := decimal.NewFromInt(85)
	qty := 4
	n.FinalPrice = &price
	n.FinalQuantity = &qty
	assert.True(t, EffectivePrice(n).Equal(price))
	assert.Equal(t, 4, EffectiveQuantity(n))

	empty := ruleNegotiation()
	assert.True(t, EffectivePrice(empty).Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 5, EffectiveQuantity(empty))
}

func TestCalculateSavings(t *testing.T) {
	s := CalculateSavings(decimal.NewFromInt(100), decimal.NewFromInt(90))
	assert.True(t, s.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "10.0", s.Percentage)
	assert.True(t, s.IsDiscount)

	s = CalculateSavings(decimal.NewFromInt(100), decimal.NewFromInt(110))
	assert.Equal(t, "-10.0", s.Percentage)
	assert.False(t, s.IsDiscount)

	s = CalculateSavings(decimal.Zero, decimal.NewFromInt(10))
	assert.Equal(t, "0.0", s.Percentage)
}

func TestFormatTimeRemaining(t *testing.T) {
	cases := []struct {
		left time.Duration
		want string
	}{
		{2*24*time.Hour + 3*time.Hour + 5*time.Minute, "2d 3h left"},
		{5*time.Hour + 30*time.Minute, "5h 30m left"},
		{42 * time.Minute, "42m left"},
		{0, "Expired"},
		{-time.Hour, "Expired"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTimeRemaining(ruleNow.Add(tc.left), ruleNow))
	}
}

func TestIsNearExpiry(t *testing.T) {
	assert.True(t, IsNearExpiry(ruleNow.Add(23*time.Hour), ruleNow, 24*time.Hour))
	assert.False(t, IsNearExpiry(ruleNow.Add(25*time.Hour), ruleNow, 24*time.Hour))
	assert.False(t, IsNearExpiry(ruleNow.Add(-time.Minute), ruleNow, 24*time.Hour))
}
