package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// Repository defines persistence operations for negotiated orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindActiveByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Order, error)
	ListByNegotiations(ctx context.Context, negotiationIDs []uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error)
}

// Clock returns the current time; tests pin it.
type Clock func() time.Time
