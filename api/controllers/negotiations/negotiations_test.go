package negotiations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/api/middleware"
	"github.com/agromart/agromart-backend/internal/delivery"
	internalnegotiations "github.com/agromart/agromart-backend/internal/negotiations"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

type stubService struct {
	internalnegotiations.Service

	startIn    internalnegotiations.StartInput
	listFilter string
	listPage   pagination.Params
	counterIn  internalnegotiations.CounterOfferInput
	rejectWhy  string
	checkoutIn internalnegotiations.CheckoutInput
	cancelled  uuid.UUID
	actor      internalnegotiations.Actor
	err        error
}

func (s *stubService) Start(_ context.Context, in internalnegotiations.StartInput) (*internalnegotiations.NegotiationView, error) {
	s.startIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &internalnegotiations.NegotiationView{ID: uuid.New(), BuyerUID: in.BuyerUID, Status: enums.NegotiationStatusActive}, nil
}

func (s *stubService) List(_ context.Context, actor internalnegotiations.Actor, filter string, page pagination.Params) (*internalnegotiations.ListResult, error) {
	s.actor = actor
	s.listFilter = filter
	s.listPage = page
	if s.err != nil {
		return nil, s.err
	}
	return &internalnegotiations.ListResult{Negotiations: []internalnegotiations.NegotiationView{}}, nil
}

func (s *stubService) Get(_ context.Context, id uuid.UUID, actor internalnegotiations.Actor) (*internalnegotiations.NegotiationView, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &internalnegotiations.NegotiationView{ID: id}, nil
}

func (s *stubService) CounterOffer(_ context.Context, id uuid.UUID, actor internalnegotiations.Actor, in internalnegotiations.CounterOfferInput) (*internalnegotiations.NegotiationView, error) {
	s.actor = actor
	s.counterIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &internalnegotiations.NegotiationView{ID: id}, nil
}

func (s *stubService) Reject(_ context.Context, id uuid.UUID, actor internalnegotiations.Actor, reason string) (*internalnegotiations.NegotiationView, error) {
	s.actor = actor
	s.rejectWhy = reason
	return &internalnegotiations.NegotiationView{ID: id, Status: enums.NegotiationStatusRejected}, s.err
}

func (s *stubService) Cancel(_ context.Context, id uuid.UUID, actor internalnegotiations.Actor) error {
	s.actor = actor
	s.cancelled = id
	return s.err
}

func (s *stubService) CalculateDelivery(_ context.Context, _ uuid.UUID, _ internalnegotiations.Actor, method enums.DeliveryMethod, fee decimal.Decimal) (*delivery.Quote, error) {
	return &delivery.Quote{Method: method, Fee: fee}, s.err
}

func (s *stubService) Checkout(_ context.Context, id uuid.UUID, actor internalnegotiations.Actor, in internalnegotiations.CheckoutInput) (*internalnegotiations.CheckoutResult, error) {
	s.actor = actor
	s.checkoutIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &internalnegotiations.CheckoutResult{OrderID: uuid.New(), OrderNumber: "ORD-12345678abcd", PaymentMethod: in.PaymentMethod}, nil
}

func newTestRouter(svc internalnegotiations.Service, uid string, role enums.AccountRole) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if uid != "" {
				req = req.WithContext(middleware.WithIdentity(req.Context(), uid, role))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/negotiations", Start(svc, nil))
	r.Get("/negotiations", List(svc, nil))
	r.Get("/negotiations/{id}", Get(svc, nil))
	r.Delete("/negotiations/{id}", Cancel(svc, nil))
	r.Post("/negotiations/{id}/counter-offer", CounterOffer(svc, nil))
	r.Post("/negotiations/{id}/reject", Reject(svc, nil))
	r.Post("/negotiations/{id}/calculate-delivery", CalculateDelivery(svc, nil))
	r.Post("/negotiations/{id}/checkout", Checkout(svc, nil))
	return r
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestStartUsesCallerAsBuyer(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "client-1", enums.AccountRoleClient)

	productID := uuid.New()
	body := `{"seller_uid":"vendor-9","product_id":"` + productID.String() + `","price":"42.50","quantity":10,"message":"  bulk order  "}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "client-1", svc.startIn.BuyerUID)
	require.Equal(t, enums.AccountRoleClient, svc.startIn.BuyerRole)
	require.Equal(t, "vendor-9", svc.startIn.SellerUID)
	require.Equal(t, productID, svc.startIn.ProductID)
	require.True(t, svc.startIn.Price.Equal(decimal.RequireFromString("42.50")))
	require.Equal(t, "bulk order", svc.startIn.Message)
	require.Nil(t, svc.startIn.ConversationID)
}

func TestStartRejectsInvalidBody(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "client-1", enums.AccountRoleClient)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations", strings.NewReader(`{"seller_uid":"vendor-9","product_id":"nope","quantity":0}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	require.Empty(t, svc.startIn.BuyerUID)
}

func TestHandlersRequireIdentity(t *testing.T) {
	router := newTestRouter(&stubService{}, "", "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/negotiations/"+uuid.NewString(), nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetRejectsMalformedID(t *testing.T) {
	router := newTestRouter(&stubService{}, "client-1", enums.AccountRoleClient)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/negotiations/not-a-uuid", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPassesFilterAndPage(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "vendor-1", enums.AccountRoleVendor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/negotiations?status=expired&limit=25&cursor=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "expired", svc.listFilter)
	require.Equal(t, pagination.Params{Limit: 25, Cursor: "abc"}, svc.listPage)
	require.Equal(t, internalnegotiations.Actor{UID: "vendor-1", Role: enums.AccountRoleVendor}, svc.actor)
}

func TestListRejectsOutOfRangeLimit(t *testing.T) {
	router := newTestRouter(&stubService{}, "vendor-1", enums.AccountRoleVendor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/negotiations?limit=1000", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCounterOfferParsesRole(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "vendor-1", enums.AccountRoleVendor)
	id := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+id.String()+"/counter-offer",
		strings.NewReader(`{"price":"39","quantity":12,"from_role":"seller"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, enums.OfferRoleSeller, svc.counterIn.FromRole)
	require.Equal(t, 12, svc.counterIn.Quantity)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+id.String()+"/counter-offer",
		strings.NewReader(`{"price":"39","quantity":12,"from_role":"broker"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCounterOfferSurfacesTurnConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeInvalidTurn, "waiting for the buyer to respond")}
	router := newTestRouter(svc, "vendor-1", enums.AccountRoleVendor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+uuid.NewString()+"/counter-offer",
		strings.NewReader(`{"price":"39","quantity":12}`)))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeInvalidTurn), errorCode(t, rec))
}

func TestRejectAllowsEmptyBody(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "vendor-1", enums.AccountRoleVendor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+uuid.NewString()+"/reject", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, svc.rejectWhy)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+uuid.NewString()+"/reject", strings.NewReader(`{"reason":"price too low"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "price too low", svc.rejectWhy)
}

func TestCancelReturnsCancelledStatus(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "client-1", enums.AccountRoleClient)
	id := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/negotiations/"+id.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, id, svc.cancelled)
	require.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

func TestCalculateDeliveryRejectsUnknownMethod(t *testing.T) {
	router := newTestRouter(&stubService{}, "client-1", enums.AccountRoleClient)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+uuid.NewString()+"/calculate-delivery",
		strings.NewReader(`{"delivery_method":"teleport"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutForwardsIdempotencyKey(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, "client-1", enums.AccountRoleClient)
	addressID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/negotiations/"+uuid.NewString()+"/checkout",
		strings.NewReader(`{"payment_method":"cod","delivery_method":"pickup","address_id":"`+addressID.String()+`"}`))
	req.Header.Set("Idempotency-Key", "chk-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "chk-1", svc.checkoutIn.IdempotencyKey)
	require.Equal(t, enums.DeliveryMethodPickup, svc.checkoutIn.DeliveryMethod)
	require.NotNil(t, svc.checkoutIn.AddressID)
	require.Equal(t, addressID, *svc.checkoutIn.AddressID)
}

func TestCheckoutSurfacesStateConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "negotiation is not accepted")}
	router := newTestRouter(svc, "client-1", enums.AccountRoleClient)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/negotiations/"+uuid.NewString()+"/checkout",
		strings.NewReader(`{"delivery_method":"pickup"}`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
}
