package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/repo"
	"github.com/agromart/agromart-backend/pkg/db/models"
)

// Repository reads the address book used at checkout.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads an address regardless of owner; callers check ownership.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.DB(ctx).First(&addr, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "address")
	}
	return &addr, nil
}

// FindDefault returns the default address of uid, or nil when none is set.
func (r *Repository) FindDefault(ctx context.Context, uid string) (*models.Address, error) {
	var rows []models.Address
	err := r.DB(ctx).
		Where("uid = ? AND is_default = ?", uid, true).
		Order("created_at DESC").
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

// Create inserts an address. A new default clears the previous default of the same owner.
func (r *Repository) Create(ctx context.Context, addr *models.Address) error {
	if addr.ID == uuid.Nil {
		addr.ID = uuid.New()
	}
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if addr.IsDefault {
			if err := tx.Model(&models.Address{}).
				Where("uid = ? AND is_default = ?", addr.UID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(addr).Error
	})
}
