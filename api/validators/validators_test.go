package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

type offerBody struct {
	PricePerUnit string `json:"price_per_unit" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

type reasonBody struct {
	Reason string `json:"reason" validate:"max=10"`
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func requireValidation(t *testing.T, err error) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return typed
}

func TestDecodeJSONBodyAcceptsValidObject(t *testing.T) {
	var dest offerBody
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"price_per_unit":"12.50","quantity":40}`), &dest))
	assert.Equal(t, "12.50", dest.PricePerUnit)
	assert.Equal(t, 40, dest.Quantity)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"price_per_unit":"1","quantity":1,"discount":5}`,
		"trailing data":  `{"price_per_unit":"1","quantity":1}{"quantity":2}`,
		"empty body":     ``,
		"malformed json": `{"price_per_unit":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest offerBody
			requireValidation(t, DecodeJSONBody(jsonRequest(body), &dest))
		})
	}
}

func TestDecodeJSONBodyReportsFieldMessages(t *testing.T) {
	var dest offerBody
	typed := requireValidation(t, DecodeJSONBody(jsonRequest(`{"price_per_unit":"1","quantity":0}`), &dest))
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["quantity"])
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	huge := `{"price_per_unit":"` + strings.Repeat("9", MaxBodyBytes) + `","quantity":1}`
	var dest offerBody
	typed := requireValidation(t, DecodeJSONBody(jsonRequest(huge), &dest))
	assert.Equal(t, "request body too large", typed.Message())
}

func TestDecodeOptionalJSONBody(t *testing.T) {
	var empty reasonBody
	require.NoError(t, DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPost, "/", http.NoBody), &empty))
	assert.Empty(t, empty.Reason)

	var withReason reasonBody
	require.NoError(t, DecodeOptionalJSONBody(jsonRequest(`{"reason":"too low"}`), &withReason))
	assert.Equal(t, "too low", withReason.Reason)

	var tooLong reasonBody
	requireValidation(t, DecodeOptionalJSONBody(jsonRequest(`{"reason":"far far too long"}`), &tooLong))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=500", nil)

	got, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	got, err = ParseQueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	_, err = ParseQueryInt(req, "bad", 10, 1, 100)
	requireValidation(t, err)
	_, err = ParseQueryInt(req, "big", 10, 1, 100)
	requireValidation(t, err)
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unreadOnly=true&flag=maybe", nil)

	got, err := ParseQueryBool(req, "unreadOnly", false)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ParseQueryBool(req, "absent", true)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = ParseQueryBool(req, "flag", false)
	requireValidation(t, err)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "fresh maize", SanitizeString("  fresh\x00 maize\x07 ", 0))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 0))
	assert.Equal(t, "ঢাকা", SanitizeString("ঢাকার", 4), "truncates on rune boundaries")
	assert.Equal(t, "", SanitizeString("   ", 10))
}
