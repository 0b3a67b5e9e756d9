package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/repo"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// Repository is the account directory keyed by external uid.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new account and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateAccountDTO) (*models.Account, error) {
	account := dto.ToModel()
	if err := r.DB(ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// FindByUID retrieves the account matching uid.
func (r *Repository) FindByUID(ctx context.Context, uid string) (*models.Account, error) {
	var account models.Account
	if err := r.DB(ctx).Where("uid = ?", uid).First(&account).Error; err != nil {
		return nil, repo.NotFound(err, "account")
	}
	return &account, nil
}

// FindByUIDs loads the accounts for the given uids keyed by uid. Unknown uids
// are absent from the result.
func (r *Repository) FindByUIDs(ctx context.Context, uids []string) (map[string]models.Account, error) {
	out := make(map[string]models.Account, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var rows []models.Account
	if err := r.DB(ctx).Where("uid IN ?", uids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UID] = row
	}
	return out, nil
}

// CreateAccountDTO carries the fields needed to register a directory entry.
type CreateAccountDTO struct {
	UID          string
	Role         enums.AccountRole
	Name         string
	BusinessName string
	Email        string
	Verification enums.VerificationStatus
}

// ToModel converts the DTO into a models.Account ready for insertion.
func (d CreateAccountDTO) ToModel() *models.Account {
	account := &models.Account{
		ID:                 uuid.New(),
		UID:                strings.TrimSpace(d.UID),
		Role:               d.Role,
		Name:               strings.TrimSpace(d.Name),
		VerificationStatus: d.Verification,
	}
	if account.VerificationStatus == "" {
		account.VerificationStatus = enums.VerificationStatusNone
	}
	if trimmed := strings.TrimSpace(d.BusinessName); trimmed != "" {
		account.BusinessName = &trimmed
	}
	if trimmed := strings.ToLower(strings.TrimSpace(d.Email)); trimmed != "" {
		account.Email = &trimmed
	}
	return account
}
