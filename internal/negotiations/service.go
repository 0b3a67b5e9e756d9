package negotiations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/conversations"
	"github.com/agromart/agromart-backend/internal/delivery"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

// Service runs the negotiation state machine and its read models.
type Service interface {
	Start(ctx context.Context, in StartInput) (*NegotiationView, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*NegotiationView, error)
	List(ctx context.Context, actor Actor, filter string, page pagination.Params) (*ListResult, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, actor Actor) ([]NegotiationView, error)
	CounterOffer(ctx context.Context, id uuid.UUID, actor Actor, in CounterOfferInput) (*NegotiationView, error)
	Accept(ctx context.Context, id uuid.UUID, actor Actor) (*NegotiationView, error)
	Reject(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*NegotiationView, error)
	Cancel(ctx context.Context, id uuid.UUID, actor Actor) error
	Sweep(ctx context.Context, limit int) (int, error)
	SendExpiryWarnings(ctx context.Context, limit int) (int, error)
	DeliveryMethods(ctx context.Context, id uuid.UUID, actor Actor) (*DeliveryPreview, error)
	CalculateDelivery(ctx context.Context, id uuid.UUID, actor Actor, method enums.DeliveryMethod, negotiatedFee decimal.Decimal) (*delivery.Quote, error)
	Checkout(ctx context.Context, id uuid.UUID, actor Actor, in CheckoutInput) (*CheckoutResult, error)
}

// ServiceParams wires the collaborators. Messenger, Payments and Metrics are optional.
type ServiceParams struct {
	Repo      Repository
	Tx        db.TxRunner
	Products  ProductCatalog
	Users     UserDirectory
	Addresses AddressBook
	Messenger Messenger
	Orders    OrderCreator
	Payments  PaymentGateway
	Delivery  *delivery.Calculator
	Outbox    outbox.Emitter
	Metrics   *metrics.NegotiationMetrics
	Logger    *logger.Logger
	Config    config.NegotiationConfig
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        db.TxRunner
	products  ProductCatalog
	users     UserDirectory
	addresses AddressBook
	messenger Messenger
	orders    OrderCreator
	payments  PaymentGateway
	delivery  *delivery.Calculator
	outbox    outbox.Emitter
	metrics   *metrics.NegotiationMetrics
	logg      *logger.Logger
	cfg       config.NegotiationConfig
	now       func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, errors.New("negotiation repository required")
	case p.Tx == nil:
		return nil, errors.New("transaction runner required")
	case p.Products == nil:
		return nil, errors.New("product catalog required")
	case p.Users == nil:
		return nil, errors.New("user directory required")
	case p.Addresses == nil:
		return nil, errors.New("address book required")
	case p.Orders == nil:
		return nil, errors.New("order creator required")
	case p.Delivery == nil:
		return nil, errors.New("delivery calculator required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Config.TTL <= 0:
		return nil, errors.New("negotiation ttl must be positive")
	}
	now := p.Now
	if now == nil {
		now = db.UTCNow
	}
	return &service{
		repo:      p.Repo,
		tx:        p.Tx,
		products:  p.Products,
		users:     p.Users,
		addresses: p.Addresses,
		messenger: p.Messenger,
		orders:    p.Orders,
		payments:  p.Payments,
		delivery:  p.Delivery,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
		logg:      p.Logger,
		cfg:       p.Config,
		now:       func() time.Time { return now().UTC() },
	}, nil
}

func (s *service) observe(op string, err error) {
	if err == nil {
		s.metrics.Observe(op, "ok")
		return
	}
	s.metrics.Observe(op, string(pkgerrors.CodeOf(err)))
}

func (s *service) validateMessage(msg string) error {
	if s.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(msg) > s.cfg.MaxMessageLength {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "message must be at most %d characters", s.cfg.MaxMessageLength)
	}
	return nil
}

// Bounds of the numeric(12,2) price, integer quantity and numeric(14,2)
// total columns.
var (
	maxUnitPrice   = decimal.RequireFromString("9999999999.99")
	maxTotalAmount = decimal.RequireFromString("999999999999.99")
)

const maxQuantity = math.MaxInt32

func validateTerms(price decimal.Decimal, quantity int, product *models.Product) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must have at most 2 decimal places")
	}
	if price.GreaterThan(maxUnitPrice) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "price must be at most %s", maxUnitPrice.StringFixed(2))
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if quantity > maxQuantity {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", maxQuantity)
	}
	if price.Mul(decimal.NewFromInt(int64(quantity))).GreaterThan(maxTotalAmount) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "total amount must be at most %s", maxTotalAmount.StringFixed(2))
	}
	if product != nil && quantity < product.MinOrderQty {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at least %d", product.MinOrderQty).
			WithDetails(map[string]any{"min_order_qty": product.MinOrderQty})
	}
	return nil
}

func (s *service) Start(ctx context.Context, in StartInput) (view *NegotiationView, err error) {
	defer func() { s.observe("start", err) }()

	in.BuyerUID = strings.TrimSpace(in.BuyerUID)
	in.SellerUID = strings.TrimSpace(in.SellerUID)
	in.Message = strings.TrimSpace(in.Message)
	if in.BuyerUID == "" || !in.BuyerRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer identity is required")
	}
	if in.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if err := validateTerms(in.Price, in.Quantity, nil); err != nil {
		return nil, err
	}
	if err := s.validateMessage(in.Message); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.SellerUID == "" {
		in.SellerUID = product.VendorUID
	}
	if in.SellerUID != product.VendorUID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller does not own this product")
	}
	if in.SellerUID == in.BuyerUID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "you cannot negotiate on your own product")
	}
	if err := validateTerms(in.Price, in.Quantity, product); err != nil {
		return nil, err
	}

	conversationID := in.ConversationID
	if conversationID == nil && s.messenger != nil {
		if id, convErr := s.messenger.EnsureConversation(ctx, in.BuyerUID, in.SellerUID); convErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", convErr.Error()), "negotiation conversation link failed")
		} else {
			conversationID = &id
		}
	}

	now := s.now()
	n := &models.Negotiation{
		ID:             uuid.New(),
		BuyerUID:       in.BuyerUID,
		BuyerRole:      in.BuyerRole,
		SellerUID:      in.SellerUID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       in.Quantity,
		ProposedPrice:  in.Price,
		OriginalPrice:  product.ListPrice(),
		Status:         enums.NegotiationStatusActive,
		ConversationID: conversationID,
		ExpiresAt:      now.Add(s.cfg.TTL),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	n.Offers = []models.NegotiationOffer{{
		ID:            uuid.New(),
		NegotiationID: n.ID,
		Seq:           0,
		FromUID:       in.BuyerUID,
		FromRole:      enums.OfferRoleBuyer,
		Price:         in.Price,
		Quantity:      in.Quantity,
		Message:       in.Message,
		CreatedAt:     now,
	}}
	actor := Actor{UID: in.BuyerUID, Role: in.BuyerRole}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stale, err := repo.LockStaleForPair(ctx, in.BuyerUID, in.SellerUID, product.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stale negotiations")
		}
		for i := range stale {
			if _, err := s.expireInTx(ctx, tx, &stale[i], now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stale negotiation")
			}
		}
		existing, err := repo.FindActiveForPair(ctx, in.BuyerUID, in.SellerUID, product.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active negotiation")
		}
		if existing != nil {
			return duplicateActive(existing.ID)
		}
		if err := repo.Create(ctx, n); err != nil {
			if db.IsUniqueViolation(err, "ux_negotiations_active_pair", "negotiations.buyer_uid") {
				return pkgerrors.New(pkgerrors.CodeConflict, "an active negotiation already exists for this product")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create negotiation")
		}
		payload := payloads.NegotiationStartedEvent{NegotiationSnapshot: snapshotOf(n, in.BuyerUID), Message: in.Message}
		return s.emit(ctx, tx, n, enums.EventNegotiationStarted, &actor, payload, now)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithNegotiationID(s.logg.WithUserID(ctx, in.BuyerUID), n.ID.String())
	s.logg.Info(logCtx, "negotiation started")
	s.postMessage(ctx, n, in.BuyerUID, fmt.Sprintf("New price negotiation started for %s", n.ProductName))
	return s.renderOne(ctx, n, in.BuyerUID), nil
}

func duplicateActive(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "an active negotiation already exists for this product").
		WithDetails(map[string]any{"negotiation_id": id.String()})
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*NegotiationView, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsParticipant(n, actor.UID) {
		return nil, errNotParticipant()
	}
	return s.renderOne(ctx, n, actor.UID), nil
}

func (s *service) List(ctx context.Context, actor Actor, rawFilter string, page pagination.Params) (*ListResult, error) {
	if strings.TrimSpace(actor.UID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	filter, err := enums.ParseNegotiationFilter(rawFilter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status filter")
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(page.Limit)
	now := s.now()

	rows, err := s.repo.List(ctx, ListQuery{
		UID:    actor.UID,
		Role:   actor.Role,
		Filter: filter,
		Now:    now,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list negotiations")
	}
	rows, next := pagination.Trim(rows, limit, func(n models.Negotiation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})

	result := &ListResult{
		Negotiations:  s.renderMany(ctx, rows, actor.UID, now),
		OrdersSummary: map[string]orders.Summary{},
		NextCursor:    next,
	}
	var converted []uuid.UUID
	for _, n := range rows {
		if n.Status == enums.NegotiationStatusAccepted && n.OrderID != nil {
			converted = append(converted, n.ID)
		}
	}
	if len(converted) > 0 {
		summaries, err := s.orders.SummariesByNegotiation(ctx, converted)
		if err != nil {
			return nil, err
		}
		for id, summary := range summaries {
			result.OrdersSummary[id.String()] = summary
		}
	}
	return result, nil
}

func (s *service) ListByConversation(ctx context.Context, conversationID uuid.UUID, actor Actor) ([]NegotiationView, error) {
	rows, err := s.repo.ListByConversation(ctx, conversationID, actor.UID, actor.Role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conversation negotiations")
	}
	return s.renderMany(ctx, rows, actor.UID, s.now()), nil
}

func errNotParticipant() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "you are not a participant in this negotiation")
}

// loadLive reads the negotiation in tx and checks the preconditions shared by
// every participant action: membership, non-terminal status and deadline.
func (s *service) loadLive(ctx context.Context, tx *gorm.DB, id uuid.UUID, uid string, now time.Time) (*models.Negotiation, error) {
	n, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsParticipant(n, uid) {
		return nil, errNotParticipant()
	}
	if n.Status.IsTerminal() {
		return nil, alreadyTerminal(n.Status)
	}
	if IsExpired(n, now) {
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "negotiation has expired")
	}
	return n, nil
}

func alreadyTerminal(status enums.NegotiationStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeAlreadyTerminal, "negotiation is already %s", status).
		WithDetails(map[string]any{"status": status})
}

func checkTurn(n *models.Negotiation, uid string) error {
	if lastAuthor(n) == uid {
		return pkgerrors.New(pkgerrors.CodeInvalidTurn, "waiting for the other party to respond")
	}
	return nil
}

// resolveConflict explains a lost version race from the row's new state.
func (s *service) resolveConflict(ctx context.Context, tx *gorm.DB, id uuid.UUID, uid string, now time.Time) error {
	n, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case n.Status.IsTerminal():
		return alreadyTerminal(n.Status)
	case IsExpired(n, now):
		return pkgerrors.New(pkgerrors.CodeExpired, "negotiation has expired")
	case lastAuthor(n) == uid:
		return pkgerrors.New(pkgerrors.CodeInvalidTurn, "waiting for the other party to respond")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "negotiation changed, reload and retry")
	}
}

// mutate runs fn in a transaction. When fn observed a stored-active record
// past its deadline, the expired status is persisted afterwards.
func (s *service) mutate(ctx context.Context, op string, id uuid.UUID, fn func(tx *gorm.DB, now time.Time) error) error {
	now := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error { return fn(tx, now) })
	if pkgerrors.IsCode(err, pkgerrors.CodeExpired) {
		s.expireObserved(ctx, id, now)
	}
	s.observe(op, err)
	return err
}

func (s *service) expireObserved(ctx context.Context, id uuid.UUID, now time.Time) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return err
		}
		_, err = s.expireInTx(ctx, tx, n, now)
		return err
	})
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"negotiation_id": id.String(), "error": err.Error()}), "persist observed expiry failed")
	}
}

func (s *service) CounterOffer(ctx context.Context, id uuid.UUID, actor Actor, in CounterOfferInput) (*NegotiationView, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validateTerms(in.Price, in.Quantity, nil); err != nil {
		s.observe("counter_offer", err)
		return nil, err
	}
	if err := s.validateMessage(in.Message); err != nil {
		s.observe("counter_offer", err)
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.observe("counter_offer", err)
		return nil, err
	}
	product, err := s.products.FindByID(ctx, current.ProductID)
	if err != nil {
		s.observe("counter_offer", err)
		return nil, err
	}

	var n *models.Negotiation
	err = s.mutate(ctx, "counter_offer", id, func(tx *gorm.DB, now time.Time) error {
		var err error
		n, err = s.loadLive(ctx, tx, id, actor.UID, now)
		if err != nil {
			return err
		}
		role, _ := RoleOf(n, actor.UID)
		if in.FromRole != "" && in.FromRole != role {
			return pkgerrors.New(pkgerrors.CodeValidation, "from_role does not match your role in this negotiation")
		}
		if err := checkTurn(n, actor.UID); err != nil {
			return err
		}
		if err := validateTerms(in.Price, in.Quantity, product); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateVersioned(ctx, n.ID, n.Version, map[string]any{"updated_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update negotiation")
		}
		if !ok {
			return s.resolveConflict(ctx, tx, id, actor.UID, now)
		}
		offer := models.NegotiationOffer{
			ID:            uuid.New(),
			NegotiationID: n.ID,
			Seq:           len(n.Offers),
			FromUID:       actor.UID,
			FromRole:      role,
			Price:         in.Price,
			Quantity:      in.Quantity,
			Message:       in.Message,
			CreatedAt:     now,
		}
		if err := repo.InsertOffer(ctx, &offer); err != nil {
			if db.IsUniqueViolation(err, "ux_negotiation_offers_seq", "negotiation_offers.negotiation_id") {
				return pkgerrors.New(pkgerrors.CodeInvalidTurn, "another offer was recorded first")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append offer")
		}
		n.Offers = append(n.Offers, offer)
		n.Version++
		n.UpdatedAt = now

		payload := payloads.NegotiationCounteredEvent{
			NegotiationSnapshot: snapshotOf(n, actor.UID),
			FromRole:            role,
			Message:             in.Message,
		}
		return s.emit(ctx, tx, n, enums.EventNegotiationCountered, &actor, payload, now)
	})
	if err != nil {
		return nil, err
	}

	total := in.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
	s.postMessage(ctx, n, actor.UID, fmt.Sprintf("Counter offer: %s x %d = %s", in.Price.StringFixed(2), in.Quantity, total.StringFixed(2)))
	return s.renderOne(ctx, n, actor.UID), nil
}

func (s *service) Accept(ctx context.Context, id uuid.UUID, actor Actor) (*NegotiationView, error) {
	var n *models.Negotiation
	err := s.mutate(ctx, "accept", id, func(tx *gorm.DB, now time.Time) error {
		var err error
		n, err = s.loadLive(ctx, tx, id, actor.UID, now)
		if err != nil {
			return err
		}
		if err := checkTurn(n, actor.UID); err != nil {
			return err
		}

		price := EffectivePrice(n)
		quantity := EffectiveQuantity(n)
		total := price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
		ok, err := s.repo.WithTx(tx).UpdateVersioned(ctx, n.ID, n.Version, map[string]any{
			"status":             enums.NegotiationStatusAccepted,
			"final_price":        price,
			"final_quantity":     quantity,
			"final_total_amount": total,
			"accepted_at":        now,
			"accepted_by":        actor.UID,
			"updated_at":         now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept negotiation")
		}
		if !ok {
			return s.resolveConflict(ctx, tx, id, actor.UID, now)
		}
		acceptedBy := actor.UID
		acceptedAt := now
		n.Status = enums.NegotiationStatusAccepted
		n.FinalPrice = &price
		n.FinalQuantity = &quantity
		n.FinalTotalAmount = &total
		n.AcceptedAt = &acceptedAt
		n.AcceptedBy = &acceptedBy
		n.Version++
		n.UpdatedAt = now

		payload := payloads.NegotiationAcceptedEvent{
			NegotiationSnapshot: snapshotOf(n, actor.UID),
			FinalTotalAmount:    total,
			AcceptedAt:          now,
		}
		return s.emit(ctx, tx, n, enums.EventNegotiationAccepted, &actor, payload, now)
	})
	if err != nil {
		return nil, err
	}

	s.postMessage(ctx, n, actor.UID, fmt.Sprintf("Offer accepted! Final price: %s x %d = %s",
		n.FinalPrice.StringFixed(2), *n.FinalQuantity, n.FinalTotalAmount.StringFixed(2)))
	return s.renderOne(ctx, n, actor.UID), nil
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*NegotiationView, error) {
	reason = strings.TrimSpace(reason)
	if err := s.validateMessage(reason); err != nil {
		return nil, err
	}
	var n *models.Negotiation
	err := s.mutate(ctx, "reject", id, func(tx *gorm.DB, now time.Time) error {
		var err error
		n, err = s.loadLive(ctx, tx, id, actor.UID, now)
		if err != nil {
			return err
		}
		if err := checkTurn(n, actor.UID); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, n, actor.UID, enums.NegotiationStatusRejected, now); err != nil {
			return err
		}
		payload := payloads.NegotiationRejectedEvent{NegotiationSnapshot: snapshotOf(n, actor.UID), Reason: reason}
		return s.emit(ctx, tx, n, enums.EventNegotiationRejected, &actor, payload, now)
	})
	if err != nil {
		return nil, err
	}
	s.postMessage(ctx, n, actor.UID, fmt.Sprintf("Offer rejected for %s", n.ProductName))
	return s.renderOne(ctx, n, actor.UID), nil
}

// Cancel is open to either participant regardless of whose turn it is.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.mutate(ctx, "cancel", id, func(tx *gorm.DB, now time.Time) error {
		n, err := s.loadLive(ctx, tx, id, actor.UID, now)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, n, actor.UID, enums.NegotiationStatusCancelled, now); err != nil {
			return err
		}
		payload := payloads.NegotiationCancelledEvent{NegotiationSnapshot: snapshotOf(n, actor.UID)}
		return s.emit(ctx, tx, n, enums.EventNegotiationCancelled, &actor, payload, now)
	})
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, n *models.Negotiation, uid string, to enums.NegotiationStatus, now time.Time) error {
	ok, err := s.repo.WithTx(tx).UpdateVersioned(ctx, n.ID, n.Version, map[string]any{
		"status":     to,
		"updated_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update negotiation status")
	}
	if !ok {
		return s.resolveConflict(ctx, tx, n.ID, uid, now)
	}
	n.Status = to
	n.Version++
	n.UpdatedAt = now
	return nil
}

// Sweep persists expired on active negotiations past their deadline and
// queues one negotiation_expired event per row.
func (s *service) Sweep(ctx context.Context, limit int) (int, error) {
	now := s.now()
	expired := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).LockDueForExpiry(ctx, now, limit)
		if err != nil {
			return err
		}
		for i := range rows {
			changed, err := s.expireInTx(ctx, tx, &rows[i], now)
			if err != nil {
				return err
			}
			if changed {
				expired++
			}
		}
		return nil
	})
	s.observe("sweep", err)
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// SendExpiryWarnings queues one warning per live negotiation entering the
// warning window.
func (s *service) SendExpiryWarnings(ctx context.Context, limit int) (int, error) {
	now := s.now()
	warned := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.LockExpiringUnwarned(ctx, now, now.Add(s.cfg.ExpiryWarningWindow), limit)
		if err != nil {
			return err
		}
		for i := range rows {
			n := &rows[i]
			if err := repo.MarkExpiryWarningSent(ctx, n.ID); err != nil {
				return err
			}
			payload := payloads.NegotiationExpiryWarningEvent{
				NegotiationSnapshot: snapshotOf(n, ""),
				TimeRemaining:       FormatTimeRemaining(n.ExpiresAt, now),
			}
			if err := s.emit(ctx, tx, n, enums.EventNegotiationExpiryWarning, nil, payload, now); err != nil {
				return err
			}
			warned++
		}
		return nil
	})
	s.observe("expiry_warning", err)
	if err != nil {
		return 0, err
	}
	return warned, nil
}

// postMessage mirrors an action into the linked conversation. It never fails
// the caller.
func (s *service) postMessage(ctx context.Context, n *models.Negotiation, senderUID, content string) {
	if s.messenger == nil || n.ConversationID == nil {
		return
	}
	senderName := senderUID
	if acct, err := s.users.FindByUID(ctx, senderUID); err == nil {
		senderName = acct.DisplayName()
	}
	err := s.messenger.PostNegotiationMessage(ctx, conversations.NegotiationMessage{
		ConversationID: *n.ConversationID,
		NegotiationID:  n.ID,
		SenderUID:      senderUID,
		SenderName:     senderName,
		Content:        content,
		Data: map[string]any{
			"negotiation_id": n.ID.String(),
			"status":         n.Status,
			"price":          EffectivePrice(n).StringFixed(2),
			"quantity":       EffectiveQuantity(n),
		},
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"negotiation_id": n.ID.String(), "error": err.Error()})
		s.logg.Warn(logCtx, "negotiation message not delivered")
	}
}

func (s *service) names(ctx context.Context, rows []models.Negotiation) map[string]models.Account {
	seen := map[string]struct{}{}
	uids := make([]string, 0, len(rows)*2)
	for _, n := range rows {
		for _, uid := range []string{n.BuyerUID, n.SellerUID} {
			if _, ok := seen[uid]; !ok {
				seen[uid] = struct{}{}
				uids = append(uids, uid)
			}
		}
	}
	accounts, err := s.users.FindByUIDs(ctx, uids)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "participant names unavailable")
		return nil
	}
	return accounts
}

func (s *service) renderMany(ctx context.Context, rows []models.Negotiation, uid string, now time.Time) []NegotiationView {
	vc := viewContext{now: now, nearWindow: s.cfg.NearExpiryWindow, names: s.names(ctx, rows)}
	out := make([]NegotiationView, 0, len(rows))
	for i := range rows {
		out = append(out, vc.render(&rows[i], uid))
	}
	return out
}

func (s *service) renderOne(ctx context.Context, n *models.Negotiation, uid string) *NegotiationView {
	views := s.renderMany(ctx, []models.Negotiation{*n}, uid, s.now())
	return &views[0]
}
