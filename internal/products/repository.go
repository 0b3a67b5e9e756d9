package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/repo"
	"github.com/agromart/agromart-backend/pkg/db/models"
)

// Repository is the read side of the product catalog used by negotiations.
type Repository struct {
	repo.Base
}

// NewRepository binds the catalog to the provided connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads an active product. Inactive or missing products map to NOT_FOUND.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, repo.NotFound(err, "product")
	}
	return &product, nil
}

// Create inserts a catalog row. Catalog management lives elsewhere; this
// exists for seeding and tests.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.MinOrderQty <= 0 {
		product.MinOrderQty = 1
	}
	if product.UnitType == "" {
		product.UnitType = "pcs"
	}
	product.IsActive = true
	return r.DB(ctx).Create(product).Error
}
