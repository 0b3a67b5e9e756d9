package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/repo"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return &order, nil
}

// FindActiveByNegotiation returns the non-cancelled order of a negotiation, or nil.
func (r *repository) FindActiveByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("negotiation_id = ? AND status <> ?", negotiationID, enums.OrderStatusCancelled).
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

func (r *repository) ListByNegotiations(ctx context.Context, negotiationIDs []uuid.UUID) ([]models.Order, error) {
	if len(negotiationIDs) == 0 {
		return nil, nil
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("negotiation_id IN ? AND status <> ?", negotiationIDs, enums.OrderStatusCancelled).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatus applies updates when the order is still in one of the from
// statuses. It reports whether a row changed.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
