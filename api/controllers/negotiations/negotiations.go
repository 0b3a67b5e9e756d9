package negotiations

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/api/middleware"
	"github.com/agromart/agromart-backend/api/responses"
	"github.com/agromart/agromart-backend/api/validators"
	internalnegotiations "github.com/agromart/agromart-backend/internal/negotiations"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

const maxMessageLength = 1000

type startRequest struct {
	SellerUID      string          `json:"seller_uid" validate:"required"`
	ProductID      string          `json:"product_id" validate:"required,uuid"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity" validate:"required,min=1"`
	Message        string          `json:"message"`
	ConversationID *string         `json:"conversation_id" validate:"omitempty,uuid"`
}

type counterOfferRequest struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"required,min=1"`
	Message  string          `json:"message"`
	FromRole string          `json:"from_role" validate:"omitempty,oneof=buyer seller"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type calculateDeliveryRequest struct {
	DeliveryMethod string          `json:"delivery_method" validate:"required"`
	NegotiatedFee  decimal.Decimal `json:"negotiated_fee"`
}

type checkoutRequest struct {
	PaymentMethod  string          `json:"payment_method"`
	AddressID      *string         `json:"address_id" validate:"omitempty,uuid"`
	DeliveryMethod string          `json:"delivery_method" validate:"required"`
	NegotiatedFee  decimal.Decimal `json:"negotiated_fee"`
	Notes          string          `json:"notes"`
	SourceID       string          `json:"source_id"`
}

// Start opens a negotiation with the caller as buyer.
func Start(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "negotiation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req startRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
			return
		}
		input := internalnegotiations.StartInput{
			BuyerUID:  actor.UID,
			BuyerRole: actor.Role,
			SellerUID: strings.TrimSpace(req.SellerUID),
			ProductID: productID,
			Price:     req.Price,
			Quantity:  req.Quantity,
			Message:   validators.SanitizeString(req.Message, maxMessageLength),
		}
		if req.ConversationID != nil {
			conversationID, err := uuid.Parse(*req.ConversationID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid conversation_id"))
				return
			}
			input.ConversationID = &conversationID
		}

		view, err := svc.Start(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// List returns the caller's negotiations filtered by status and paged by cursor.
func List(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "negotiation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		result, err := svc.List(r.Context(), actor, r.URL.Query().Get("status"), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListByConversation returns the negotiations attached to a conversation the caller takes part in.
func ListByConversation(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "negotiation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		conversationID, err := validators.ParseUUIDParam(r, "conversationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListByConversation(r.Context(), conversationID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if views == nil {
			views = []internalnegotiations.NegotiationView{}
		}
		responses.WriteSuccess(w, map[string]any{"negotiations": views})
	}
}

func Get(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		view, err := svc.Get(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

// CounterOffer appends an offer from the caller's side.
func CounterOffer(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		var req counterOfferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalnegotiations.CounterOfferInput{
			Price:    req.Price,
			Quantity: req.Quantity,
			Message:  validators.SanitizeString(req.Message, maxMessageLength),
		}
		if req.FromRole != "" {
			role, err := enums.ParseOfferRole(req.FromRole)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from_role"))
				return
			}
			input.FromRole = role
		}

		view, err := svc.CounterOffer(r.Context(), id, actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func Accept(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		view, err := svc.Accept(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

// Reject closes the negotiation. The body and its reason are optional.
func Reject(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		var req rejectRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Reject(r.Context(), id, actor, validators.SanitizeString(req.Reason, maxMessageLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func Cancel(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		if err := svc.Cancel(r.Context(), id, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"id":     id,
			"status": enums.NegotiationStatusCancelled,
		})
	})
}

// DeliveryMethods previews the shipping options for an accepted negotiation.
func DeliveryMethods(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		preview, err := svc.DeliveryMethods(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	})
}

func CalculateDelivery(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		var req calculateDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParseDeliveryMethod(req.DeliveryMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery_method"))
			return
		}

		quote, err := svc.CalculateDelivery(r.Context(), id, actor, method, req.NegotiatedFee)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	})
}

// Checkout converts an accepted negotiation into an order. The
// Idempotency-Key header doubles as the payment idempotency key.
func Checkout(svc internalnegotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return withNegotiation(svc, logg, func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentMethod, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method"))
			return
		}
		deliveryMethod, err := enums.ParseDeliveryMethod(req.DeliveryMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery_method"))
			return
		}
		input := internalnegotiations.CheckoutInput{
			PaymentMethod:  paymentMethod,
			DeliveryMethod: deliveryMethod,
			NegotiatedFee:  req.NegotiatedFee,
			Notes:          validators.SanitizeString(req.Notes, maxMessageLength),
			SourceID:       strings.TrimSpace(req.SourceID),
			IdempotencyKey: strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader)),
		}
		if req.AddressID != nil {
			addressID, err := uuid.Parse(*req.AddressID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address_id"))
				return
			}
			input.AddressID = &addressID
		}

		result, err := svc.Checkout(r.Context(), id, actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	})
}

type negotiationHandler func(w http.ResponseWriter, r *http.Request, id uuid.UUID, actor internalnegotiations.Actor)

func withNegotiation(svc internalnegotiations.Service, logg *logger.Logger, fn negotiationHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "negotiation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			r = r.WithContext(logg.WithNegotiationID(r.Context(), id.String()))
		}
		fn(w, r, id, actor)
	}
}

func actorFromRequest(r *http.Request) (internalnegotiations.Actor, error) {
	uid := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())
	if uid == "" || !role.IsValid() {
		return internalnegotiations.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	return internalnegotiations.Actor{UID: uid, Role: role}, nil
}
