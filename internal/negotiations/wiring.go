package negotiations

import (
	"fmt"

	"github.com/agromart/agromart-backend/internal/address"
	"github.com/agromart/agromart-backend/internal/conversations"
	"github.com/agromart/agromart-backend/internal/delivery"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/internal/users"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/outbox"
)

// Wiring carries the process-level dependencies shared by the API and the
// cron worker. Payments is nil when online payments are disabled.
type Wiring struct {
	DB       *db.Client
	Config   *config.Config
	Payments PaymentGateway
	Metrics  *metrics.NegotiationMetrics
	Logger   *logger.Logger
}

// NewFromWiring builds the negotiation service with its database-backed
// collaborators.
func NewFromWiring(w Wiring) (Service, error) {
	if w.DB == nil || w.Config == nil {
		return nil, fmt.Errorf("database and config required")
	}
	gdb := w.DB.DB()

	messenger, err := conversations.NewService(gdb)
	if err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}
	orderSvc, err := orders.NewService(orders.NewRepository(gdb), db.UTCNow)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	rates, err := delivery.RatesFromConfig(w.Config.Delivery)
	if err != nil {
		return nil, fmt.Errorf("delivery rates: %w", err)
	}

	return NewService(ServiceParams{
		Repo:      NewRepository(gdb),
		Tx:        w.DB,
		Products:  products.NewRepository(gdb),
		Users:     users.NewRepository(gdb),
		Addresses: address.NewRepository(gdb),
		Messenger: messenger,
		Orders:    orderSvc,
		Payments:  w.Payments,
		Delivery:  delivery.NewCalculator(rates),
		Outbox:    outbox.NewService(outbox.NewRepository(gdb), w.Logger),
		Metrics:   w.Metrics,
		Logger:    w.Logger,
		Config:    w.Config.Negotiation,
	})
}
