package negotiations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/delivery"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/internal/payments"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

// loadAccepted loads an accepted negotiation visible to actor together with its product.
func (s *service) loadAccepted(ctx context.Context, id uuid.UUID, actor Actor) (*models.Negotiation, *models.Product, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !IsParticipant(n, actor.UID) {
		return nil, nil, errNotParticipant()
	}
	if n.Status != enums.NegotiationStatusAccepted {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "negotiation has not been accepted").
			WithDetails(map[string]any{"status": LogicalStatus(n, s.now())})
	}
	product, err := s.products.FindByID(ctx, n.ProductID)
	if err != nil {
		return nil, nil, err
	}
	return n, product, nil
}

func lineItems(n *models.Negotiation, product *models.Product) []delivery.Item {
	return []delivery.Item{{UnitType: product.UnitType, Quantity: EffectiveQuantity(n)}}
}

func (s *service) DeliveryMethods(ctx context.Context, id uuid.UUID, actor Actor) (*DeliveryPreview, error) {
	n, product, err := s.loadAccepted(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	items := lineItems(n, product)
	return &DeliveryPreview{
		Options:       s.delivery.Available(items),
		Recommended:   s.delivery.Recommended(items),
		TotalWeightKg: s.delivery.TotalWeight(items),
		Quantity:      EffectiveQuantity(n),
		UnitType:      product.UnitType,
	}, nil
}

func (s *service) CalculateDelivery(ctx context.Context, id uuid.UUID, actor Actor, method enums.DeliveryMethod, negotiatedFee decimal.Decimal) (*delivery.Quote, error) {
	if method != "" && !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	n, product, err := s.loadAccepted(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	quote := s.delivery.Quote(method, lineItems(n, product), negotiatedFee)
	return &quote, nil
}

func (s *service) resolveAddress(ctx context.Context, buyerUID string, addressID *uuid.UUID) (*models.Address, error) {
	if addressID != nil && *addressID != uuid.Nil {
		addr, err := s.addresses.FindByID(ctx, *addressID)
		if err != nil {
			return nil, err
		}
		if addr.UID != buyerUID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address does not belong to buyer")
		}
		return addr, nil
	}
	addr, err := s.addresses.FindDefault(ctx, buyerUID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default address")
	}
	if addr == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	return addr, nil
}

func purchaseBlock(buyer *models.Account) error {
	if buyer.Role != enums.AccountRoleClient {
		return nil
	}
	if buyer.Banned {
		return pkgerrors.New(pkgerrors.CodeForbidden, "account banned, contact support").
			WithDetails(map[string]any{"reason": "BANNED"})
	}
	if buyer.VerificationStatus.BlocksPurchase() {
		msg := "verification rejected, resubmit required"
		switch buyer.VerificationStatus {
		case enums.VerificationStatusRequired:
			msg = "verification required before purchase"
		case enums.VerificationStatusPending:
			msg = "verification under review"
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, msg).
			WithDetails(map[string]any{"reason": "VERIFICATION_BLOCK", "verification_status": buyer.VerificationStatus})
	}
	return nil
}

// Checkout converts an accepted negotiation into an order. Online payment
// methods are charged after the order commits; a failed charge cancels the
// order and releases the negotiation for another attempt.
func (s *service) Checkout(ctx context.Context, id uuid.UUID, actor Actor, in CheckoutInput) (result *CheckoutResult, err error) {
	defer func() {
		s.observe("checkout", err)
		if err == nil {
			s.metrics.ObserveCheckout(result.PaymentMethod.String(), result.PaymentStatus.String())
		}
	}()

	if !in.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if in.DeliveryMethod != "" && !in.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	n, product, err := s.loadAccepted(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.UID != n.BuyerUID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can place the order")
	}
	if n.OrderID != nil {
		return nil, errAlreadyConverted(*n.OrderID)
	}

	buyer, err := s.users.FindByUID(ctx, n.BuyerUID)
	if err != nil {
		return nil, err
	}
	if err := purchaseBlock(buyer); err != nil {
		return nil, err
	}
	if buyer.Role == enums.AccountRoleVendor && product.VendorUID == buyer.UID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendors cannot purchase their own products")
	}
	addr, err := s.resolveAddress(ctx, n.BuyerUID, in.AddressID)
	if err != nil {
		return nil, err
	}

	online := in.PaymentMethod.IsOnline()
	if online {
		if s.payments == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "online payments are not configured")
		}
		if buyer.Email == nil || *buyer.Email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required before online payment")
		}
		if in.SourceID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source_id is required")
		}
	}

	quote := s.delivery.Quote(in.DeliveryMethod, lineItems(n, product), in.NegotiatedFee)
	price := EffectivePrice(n)
	quantity := EffectiveQuantity(n)

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		current, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.OrderID != nil {
			return errAlreadyConverted(*current.OrderID)
		}
		if current.Status != enums.NegotiationStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "negotiation has not been accepted")
		}
		order, err = s.orders.CreateFromNegotiation(ctx, tx, orders.CreateInput{
			NegotiationID:  current.ID,
			BuyerUID:       current.BuyerUID,
			BuyerRole:      current.BuyerRole,
			SellerUID:      current.SellerUID,
			ProductID:      current.ProductID,
			AddressID:      addr.ID,
			Quantity:       quantity,
			UnitPrice:      price,
			OriginalPrice:  current.OriginalPrice,
			DeliveryFee:    quote.Fee,
			DeliveryMethod: quote.Method,
			PaymentMethod:  in.PaymentMethod,
			Notes:          in.Notes,
		})
		if err != nil {
			return err
		}
		ok, err := s.repo.WithTx(tx).UpdateVersioned(ctx, current.ID, current.Version, map[string]any{
			"order_id":   order.ID,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link order to negotiation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeAlreadyConverted, "negotiation already converted to an order")
		}
		current.OrderID = &order.ID
		current.Version++
		n = current
		if online {
			return nil
		}
		return s.emitCheckedOut(ctx, tx, n, actor, order, now)
	})
	if err != nil {
		return nil, err
	}

	result = &CheckoutResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PaymentMethod:  order.PaymentMethod,
		PaymentStatus:  order.PaymentStatus,
		DeliveryMethod: order.DeliveryMethod,
		DeliveryFee:    order.DeliveryFee,
		Subtotal:       order.Subtotal,
		Total:          order.Total,
	}
	logCtx := s.logg.WithNegotiationID(s.logg.WithUserID(ctx, actor.UID), n.ID.String())
	if !online {
		s.logg.Info(s.logg.WithField(logCtx, "order_number", order.OrderNumber), "negotiation checked out")
		return result, nil
	}

	key := in.IdempotencyKey
	if key == "" {
		key = "am-checkout-" + order.ID.String()
	}
	receipt, chargeErr := s.payments.Charge(ctx, payments.ChargeRequest{
		Amount:         order.Total,
		SourceID:       in.SourceID,
		IdempotencyKey: key,
		ReferenceID:    order.OrderNumber,
		Note:           fmt.Sprintf("Negotiated order %s for %s", order.OrderNumber, n.ProductName),
	})
	if chargeErr != nil {
		s.releaseOrder(ctx, n, order.ID)
		if pkgerrors.IsCode(chargeErr, pkgerrors.CodeUpstream) {
			return nil, chargeErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, chargeErr, "payment failed")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.MarkPaid(ctx, tx, order.ID, receipt.PaymentID); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		order.Status = enums.OrderStatusConfirmed
		return s.emitCheckedOut(ctx, tx, n, actor, order, s.now())
	})
	if err != nil {
		// The charge went through; the order stays pending for reconciliation.
		s.logg.Error(s.logg.WithField(logCtx, "payment_id", receipt.PaymentID), "record captured payment failed", err)
		return nil, err
	}
	result.PaymentStatus = enums.PaymentStatusPaid
	result.PaymentID = receipt.PaymentID
	s.logg.Info(s.logg.WithField(logCtx, "order_number", order.OrderNumber), "negotiation checked out with online payment")
	return result, nil
}

func errAlreadyConverted(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyConverted, "negotiation already converted to an order").
		WithDetails(map[string]any{"order_id": orderID.String()})
}

// releaseOrder cancels the order of a failed charge and clears the
// negotiation marker so the buyer can retry.
func (s *service) releaseOrder(ctx context.Context, n *models.Negotiation, orderID uuid.UUID) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.Cancel(ctx, tx, orderID); err != nil {
			return err
		}
		ok, err := s.repo.WithTx(tx).UpdateVersioned(ctx, n.ID, n.Version, map[string]any{
			"order_id":   nil,
			"updated_at": s.now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "negotiation changed while releasing order")
		}
		n.OrderID = nil
		n.Version++
		return nil
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"negotiation_id": n.ID.String(), "order_id": orderID.String()})
		s.logg.Error(logCtx, "release order after failed payment", err)
	}
}

func (s *service) emitCheckedOut(ctx context.Context, tx *gorm.DB, n *models.Negotiation, actor Actor, order *models.Order, at time.Time) error {
	payload := payloads.NegotiationCheckedOutEvent{
		NegotiationSnapshot: snapshotOf(n, actor.UID),
		OrderID:             order.ID,
		OrderNumber:         order.OrderNumber,
		PaymentMethod:       order.PaymentMethod,
		PaymentStatus:       order.PaymentStatus,
		DeliveryFee:         order.DeliveryFee,
		Total:               order.Total,
	}
	return s.emit(ctx, tx, n, enums.EventNegotiationCheckedOut, &actor, payload, at)
}
