package negotiations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/conversations"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/internal/payments"
	"github.com/agromart/agromart-backend/pkg/db/models"
)

// ProductCatalog resolves the product a negotiation is about.
type ProductCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// UserDirectory resolves participant accounts.
type UserDirectory interface {
	FindByUID(ctx context.Context, uid string) (*models.Account, error)
	FindByUIDs(ctx context.Context, uids []string) (map[string]models.Account, error)
}

// AddressBook resolves checkout addresses.
type AddressBook interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
	FindDefault(ctx context.Context, uid string) (*models.Address, error)
}

// Messenger links negotiations to conversation threads. Failures are never
// fatal to a negotiation operation.
type Messenger interface {
	EnsureConversation(ctx context.Context, uidA, uidB string) (uuid.UUID, error)
	PostNegotiationMessage(ctx context.Context, msg conversations.NegotiationMessage) error
}

// OrderCreator turns an accepted negotiation into an order inside the
// caller's transaction.
type OrderCreator interface {
	CreateFromNegotiation(ctx context.Context, tx *gorm.DB, in orders.CreateInput) (*models.Order, error)
	Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentReference string) error
	SummariesByNegotiation(ctx context.Context, negotiationIDs []uuid.UUID) (map[uuid.UUID]orders.Summary, error)
}

// PaymentGateway charges online payment methods at checkout.
type PaymentGateway interface {
	Charge(ctx context.Context, req payments.ChargeRequest) (*payments.Receipt, error)
}
