package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

const activeOrderIndex = "ux_orders_negotiation"

// Service builds orders from accepted negotiations.
type Service struct {
	repo Repository
	now  Clock
}

// NewService wires the order store. A nil clock uses UTC wall time.
func NewService(repo Repository, now Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	if now == nil {
		now = db.UTCNow
	}
	return &Service{repo: repo, now: now}, nil
}

// CreateFromNegotiation inserts a pending order inside tx. A second live order
// for the same negotiation is rejected as ALREADY_CONVERTED.
func (s *Service) CreateFromNegotiation(ctx context.Context, tx *gorm.DB, in CreateInput) (*models.Order, error) {
	if in.Quantity <= 0 || !in.UnitPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires positive price and quantity")
	}
	if in.DeliveryFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}

	now := s.now()
	subtotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        OrderNumber(in.BuyerRole, now),
		NegotiationID:      in.NegotiationID,
		BuyerUID:           in.BuyerUID,
		SellerUID:          in.SellerUID,
		ProductID:          in.ProductID,
		AddressID:          in.AddressID,
		Quantity:           in.Quantity,
		UnitPrice:          in.UnitPrice,
		Subtotal:           subtotal,
		DeliveryFee:        in.DeliveryFee.Round(2),
		Total:              subtotal.Add(in.DeliveryFee).Round(2),
		DeliveryMethod:     in.DeliveryMethod,
		PaymentMethod:      in.PaymentMethod,
		PaymentStatus:      enums.PaymentStatusPending,
		Status:             enums.OrderStatusPending,
		NegotiatedDeltaPct: DeltaPct(in.OriginalPrice, in.UnitPrice),
		Notes:              strings.TrimSpace(in.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, activeOrderIndex, "orders.negotiation_id") {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyConverted, "negotiation already converted to an order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// Cancel voids a pending order, typically after a failed payment.
func (s *Service) Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	changed, err := s.repo.WithTx(tx).UpdateStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		map[string]any{
			"status":         enums.OrderStatusCancelled,
			"payment_status": enums.PaymentStatusFailed,
			"updated_at":     s.now(),
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
	}
	return nil
}

// MarkPaid confirms a pending order once the gateway captured the payment.
func (s *Service) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentReference string) error {
	now := s.now()
	changed, err := s.repo.WithTx(tx).UpdateStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		map[string]any{
			"status":            enums.OrderStatusConfirmed,
			"payment_status":    enums.PaymentStatusPaid,
			"payment_reference": paymentReference,
			"paid_at":           now,
			"updated_at":        now,
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
	}
	return nil
}

// SummariesByNegotiation returns the live order of each negotiation keyed by negotiation id.
func (s *Service) SummariesByNegotiation(ctx context.Context, negotiationIDs []uuid.UUID) (map[uuid.UUID]Summary, error) {
	rows, err := s.repo.ListByNegotiations(ctx, negotiationIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order summaries")
	}
	out := make(map[uuid.UUID]Summary, len(rows))
	for _, row := range rows {
		out[row.NegotiationID] = summaryFromModel(row)
	}
	return out, nil
}

// OrderNumber renders ORD-XXXXXXXX-XXXX for client buyers and VND-XXXXXXXX-XXXX
// for vendor buyers: the last eight digits of the millisecond clock and four
// random uppercase characters.
func OrderNumber(role enums.AccountRole, now time.Time) string {
	prefix := "ORD"
	if role == enums.AccountRoleVendor {
		prefix = "VND"
	}
	stamp := fmt.Sprintf("%08d", now.UnixMilli()%100000000)
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, suffix)
}

// DeltaPct is the negotiated discount relative to the list price, or nil when
// the list price is unknown.
func DeltaPct(original, final decimal.Decimal) *decimal.Decimal {
	if !original.IsPositive() {
		return nil
	}
	pct := original.Sub(final).Div(original).Mul(decimal.NewFromInt(100)).Round(2)
	return &pct
}
