package negotiations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agromart/agromart-backend/internal/repo"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

// Repository persists negotiations and their offer history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, n *models.Negotiation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error)
	FindActiveForPair(ctx context.Context, buyerUID, sellerUID string, productID uuid.UUID, now time.Time) (*models.Negotiation, error)
	InsertOffer(ctx context.Context, offer *models.NegotiationOffer) error
	UpdateVersioned(ctx context.Context, id uuid.UUID, version int, updates map[string]any) (bool, error)
	List(ctx context.Context, q ListQuery) ([]models.Negotiation, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, uid string, role enums.AccountRole) ([]models.Negotiation, error)
	LockDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.Negotiation, error)
	LockStaleForPair(ctx context.Context, buyerUID, sellerUID string, productID uuid.UUID, now time.Time) ([]models.Negotiation, error)
	LockExpiringUnwarned(ctx context.Context, now, horizon time.Time, limit int) ([]models.Negotiation, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkExpiryWarningSent(ctx context.Context, id uuid.UUID) error
}

// ListQuery selects the caller-visible negotiations of one listing bucket.
type ListQuery struct {
	UID    string
	Role   enums.AccountRole
	Filter enums.NegotiationFilter
	Now    time.Time
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) withOffers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Offers", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

// Create inserts the negotiation and its opening offers.
func (r *repository) Create(ctx context.Context, n *models.Negotiation) error {
	offers := n.Offers
	n.Offers = nil
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(n).Error; err != nil {
		n.Offers = offers
		return err
	}
	n.Offers = offers
	for i := range n.Offers {
		if err := r.InsertOffer(ctx, &n.Offers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	var n models.Negotiation
	if err := r.withOffers(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "negotiation")
	}
	return &n, nil
}

// FindActiveForPair returns the live negotiation between the parties on a product, or nil.
func (r *repository) FindActiveForPair(ctx context.Context, buyerUID, sellerUID string, productID uuid.UUID, now time.Time) (*models.Negotiation, error) {
	var rows []models.Negotiation
	err := r.db.WithContext(ctx).
		Where("buyer_uid = ? AND seller_uid = ? AND product_id = ?", buyerUID, sellerUID, productID).
		Where("status = ? AND expires_at > ?", enums.NegotiationStatusActive, now).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) InsertOffer(ctx context.Context, offer *models.NegotiationOffer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(offer).Error
}

// UpdateVersioned applies updates only when the stored version still equals
// version and bumps it. It reports whether the row was changed.
func (r *repository) UpdateVersioned(ctx context.Context, id uuid.UUID, version int, updates map[string]any) (bool, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&models.Negotiation{}).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func visibleTo(db *gorm.DB, uid string, role enums.AccountRole) *gorm.DB {
	if role == enums.AccountRoleVendor {
		return db.Where("(negotiations.buyer_uid = ? OR negotiations.seller_uid = ?)", uid, uid)
	}
	return db.Where("negotiations.buyer_uid = ?", uid)
}

const liveOrderExists = "EXISTS (SELECT 1 FROM orders o WHERE o.negotiation_id = negotiations.id AND o.status <> 'cancelled'"

func applyFilter(db *gorm.DB, filter enums.NegotiationFilter, now time.Time) *gorm.DB {
	active := enums.NegotiationStatusActive
	switch filter {
	case enums.NegotiationFilterActive:
		return db.Where("negotiations.status = ? AND negotiations.expires_at > ?", active, now)
	case enums.NegotiationFilterExpired:
		return db.Where("(negotiations.status = ? OR (negotiations.status = ? AND negotiations.expires_at <= ?))",
			enums.NegotiationStatusExpired, active, now)
	case enums.NegotiationFilterAccepted:
		return db.Where("negotiations.status = ? AND negotiations.order_id IS NULL", enums.NegotiationStatusAccepted)
	case enums.NegotiationFilterPaid:
		return db.Where("negotiations.status = ?", enums.NegotiationStatusAccepted).
			Where(liveOrderExists+" AND o.payment_method <> ? AND o.payment_status = ?)", enums.PaymentMethodCOD, enums.PaymentStatusPaid)
	case enums.NegotiationFilterCOD:
		return db.Where("negotiations.status = ?", enums.NegotiationStatusAccepted).
			Where(liveOrderExists+" AND o.payment_method = ?)", enums.PaymentMethodCOD)
	case enums.NegotiationFilterAll, "":
		return db
	default:
		return db.Where("negotiations.status IN ?", filter.Statuses())
	}
}

// List returns one page ordered by created_at DESC, id DESC. A positive limit
// fetches one look-ahead row for pagination.Trim.
func (r *repository) List(ctx context.Context, q ListQuery) ([]models.Negotiation, error) {
	db := visibleTo(r.withOffers(ctx).Model(&models.Negotiation{}), q.UID, q.Role)
	db = applyFilter(db, q.Filter, q.Now)
	if q.Cursor != nil {
		cond, args := q.Cursor.Condition("negotiations")
		db = db.Where(cond, args...)
	}
	db = db.Order("negotiations.created_at DESC").Order("negotiations.id DESC")
	if q.Limit > 0 {
		db = db.Limit(q.Limit + 1)
	}
	var rows []models.Negotiation
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByConversation(ctx context.Context, conversationID uuid.UUID, uid string, role enums.AccountRole) ([]models.Negotiation, error) {
	var rows []models.Negotiation
	err := visibleTo(r.withOffers(ctx).Model(&models.Negotiation{}), uid, role).
		Where("negotiations.conversation_id = ?", conversationID).
		Order("negotiations.created_at DESC").
		Order("negotiations.id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) lockActive(ctx context.Context) *gorm.DB {
	return r.withOffers(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", enums.NegotiationStatusActive)
}

// LockDueForExpiry locks active rows whose deadline has passed.
func (r *repository) LockDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.Negotiation, error) {
	var rows []models.Negotiation
	db := r.lockActive(ctx).Where("expires_at <= ?", now).Order("expires_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&rows).Error
	return rows, err
}

// LockStaleForPair locks past-deadline active rows of one party pair so a new
// negotiation can take the active slot.
func (r *repository) LockStaleForPair(ctx context.Context, buyerUID, sellerUID string, productID uuid.UUID, now time.Time) ([]models.Negotiation, error) {
	var rows []models.Negotiation
	err := r.lockActive(ctx).
		Where("buyer_uid = ? AND seller_uid = ? AND product_id = ?", buyerUID, sellerUID, productID).
		Where("expires_at <= ?", now).
		Find(&rows).Error
	return rows, err
}

// LockExpiringUnwarned locks live rows expiring before horizon that have not been warned.
func (r *repository) LockExpiringUnwarned(ctx context.Context, now, horizon time.Time, limit int) ([]models.Negotiation, error) {
	var rows []models.Negotiation
	db := r.lockActive(ctx).
		Where("expires_at > ? AND expires_at <= ?", now, horizon).
		Where("expiry_warning_sent = ?", false).
		Order("expires_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&rows).Error
	return rows, err
}

// MarkExpired persists the expired status if the row is still active and past
// its deadline. It reports whether a row changed.
func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Negotiation{}).
		Where("id = ? AND status = ? AND expires_at <= ?", id, enums.NegotiationStatusActive, now).
		Updates(map[string]any{
			"status":     enums.NegotiationStatusExpired,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkExpiryWarningSent flags the warning without bumping the version so it
// never races participant actions.
func (r *repository) MarkExpiryWarningSent(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Negotiation{}).
		Where("id = ?", id).
		UpdateColumn("expiry_warning_sent", true).Error
}
