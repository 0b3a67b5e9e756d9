package square

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/agromart/agromart-backend/pkg/config"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
)

type fakePayments struct {
	req  *sq.CreatePaymentRequest
	resp *sq.CreatePaymentResponse
	err  error
}

func (f *fakePayments) Create(_ context.Context, req *sq.CreatePaymentRequest, _ ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error) {
	f.req = req
	return f.resp, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "square-test", Output: io.Discard})
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.SquareConfig{LocationID: "L1"}, testLogger()); !errors.Is(err, errAccessTokenRequired) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if _, err := NewClient(ctx, config.SquareConfig{AccessToken: "tok"}, testLogger()); !errors.Is(err, errLocationRequired) {
		t.Fatalf("expected missing location error, got %v", err)
	}
	if _, err := NewClient(ctx, config.SquareConfig{AccessToken: "tok", LocationID: "L1", Env: "staging"}, testLogger()); !errors.Is(err, errInvalidSquareEnv) {
		t.Fatalf("expected invalid env error, got %v", err)
	}
	c, err := NewClient(ctx, config.SquareConfig{AccessToken: "tok", LocationID: "L1", Env: "Production"}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Environment() != productionEnv {
		t.Fatalf("expected production env, got %q", c.Environment())
	}
}

func TestCreatePaymentBuildsRequest(t *testing.T) {
	id, status := "pay_1", "COMPLETED"
	fake := &fakePayments{resp: &sq.CreatePaymentResponse{Payment: &sq.Payment{ID: &id, Status: &status}}}
	c := &Client{payments: fake, locationID: "L1", currency: "usd", logger: testLogger()}

	out, err := c.CreatePayment(context.Background(), PaymentParams{
		AmountCents:    45000,
		SourceID:       "cnon:card-nonce-ok",
		IdempotencyKey: "am-checkout-1",
		ReferenceID:    "ORD-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "pay_1" || out.Status != "COMPLETED" {
		t.Fatalf("unexpected payment %+v", out)
	}
	if fake.req.IdempotencyKey != "am-checkout-1" || fake.req.SourceID != "cnon:card-nonce-ok" {
		t.Fatalf("unexpected request %+v", fake.req)
	}
	if *fake.req.AmountMoney.Amount != 45000 || *fake.req.AmountMoney.Currency != sq.Currency("USD") {
		t.Fatalf("unexpected money %+v", fake.req.AmountMoney)
	}
	if fake.req.LocationID == nil || *fake.req.LocationID != "L1" {
		t.Fatalf("location not forwarded")
	}
}

func TestCreatePaymentRejectsBadInput(t *testing.T) {
	c := &Client{payments: &fakePayments{}, logger: testLogger()}
	_, err := c.CreatePayment(context.Background(), PaymentParams{AmountCents: 0, SourceID: "x"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = c.CreatePayment(context.Background(), PaymentParams{AmountCents: 100})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePaymentDeclineIsUpstream(t *testing.T) {
	payload := `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`
	fake := &fakePayments{err: sqcore.NewAPIError(http.StatusPaymentRequired, errors.New(payload))}
	c := &Client{payments: fake, locationID: "L1", logger: testLogger()}
	_, err := c.CreatePayment(context.Background(), PaymentParams{AmountCents: 100, SourceID: "cnon:card-nonce-declined"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestEnsureIdempotencyKey(t *testing.T) {
	if got := ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	if got := ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	if out := redact("source_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeDependency},
		{http.StatusForbidden, pkgerrors.CodeDependency},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusPaymentRequired, pkgerrors.CodeUpstream},
		{http.StatusBadRequest, pkgerrors.CodeUpstream},
		{http.StatusInternalServerError, pkgerrors.CodeUpstream},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusBadRequest,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := mapSquareError(err, "operation")
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
	if got := pkgerrors.CodeOf(mapSquareError(errors.New("dial tcp: timeout"), "operation")); got != pkgerrors.CodeUpstream {
		t.Fatalf("expected transport failure to be upstream, got %s", got)
	}
}

func TestExtractSquareErrors(t *testing.T) {
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := extractSquareErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}
