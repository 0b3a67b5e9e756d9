package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/square"
)

// ChargeRequest describes a one-off charge for a negotiated order.
type ChargeRequest struct {
	Amount         decimal.Decimal
	SourceID       string
	IdempotencyKey string
	ReferenceID    string
	Note           string
}

// Receipt identifies a captured payment.
type Receipt struct {
	PaymentID string
	Status    string
}

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentParams) (*square.Payment, error)
}

// SquareGateway charges card sources through Square.
type SquareGateway struct {
	client squarePayments
	logg   *logger.Logger
}

// NewSquareGateway wraps an initialized Square client.
func NewSquareGateway(client *square.Client, logg *logger.Logger) (*SquareGateway, error) {
	if client == nil {
		return nil, errors.New("square client required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &SquareGateway{client: client, logg: logg}, nil
}

// Charge captures req.Amount. Declined or non-captured payments come back as
// UPSTREAM_FAILURE.
func (g *SquareGateway) Charge(ctx context.Context, req ChargeRequest) (*Receipt, error) {
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	cents := req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	payment, err := g.client.CreatePayment(ctx, square.PaymentParams{
		AmountCents:    cents,
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.ReferenceID,
		Note:           req.Note,
	})
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(payment.Status) {
	case "COMPLETED", "APPROVED":
	default:
		ctx = g.logg.WithFields(ctx, map[string]any{"payment_id": payment.ID, "status": payment.Status})
		g.logg.Warn(ctx, "square payment not captured")
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "payment was not captured").
			WithDetails(map[string]any{"payment_status": payment.Status})
	}
	return &Receipt{PaymentID: payment.ID, Status: payment.Status}, nil
}
