package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/internal/negotiations"
	"github.com/agromart/agromart-backend/internal/notifications"
	pkgAuth "github.com/agromart/agromart-backend/pkg/auth"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubNegotiations struct {
	negotiations.Service
	starts int
	lists  int
}

func (s *stubNegotiations) Start(_ context.Context, in negotiations.StartInput) (*negotiations.NegotiationView, error) {
	s.starts++
	return &negotiations.NegotiationView{ID: uuid.New(), BuyerUID: in.BuyerUID, Status: enums.NegotiationStatusActive}, nil
}

func (s *stubNegotiations) List(_ context.Context, _ negotiations.Actor, _ string, _ pagination.Params) (*negotiations.ListResult, error) {
	s.lists++
	return &negotiations.ListResult{Negotiations: []negotiations.NegotiationView{}}, nil
}

type stubNotifications struct {
	notifications.Service
}

func (stubNotifications) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test", CORSOrigins: "http://localhost:3000"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "agromart", ExpirationMinutes: 30},
		RateLimit: config.RateLimitConfig{MutationWindow: time.Minute, MutationLimit: 2},
		Eventing:  config.EventingConfig{HTTPIdempotencyTTL: time.Hour},
	}
}

func newTestServer(t *testing.T, neg negotiations.Service, store redisStore) (http.Handler, string) {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.Identity{UID: "client-1", Role: enums.AccountRoleClient})
	require.NoError(t, err)
	return NewRouter(cfg, logg, stubPinger{}, store, nil, neg, stubNotifications{}), token
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router, _ := newTestServer(t, &stubNegotiations{}, newMemoryRedis())

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	neg := &stubNegotiations{}
	router, _ := newTestServer(t, neg, newMemoryRedis())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/negotiations", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, neg.lists)
}

func TestAuthenticatedListReachesService(t *testing.T) {
	neg := &stubNegotiations{}
	router, token := newTestServer(t, neg, newMemoryRedis())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/negotiations?status=active", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, neg.lists)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestStartReplaysIdempotentRequest(t *testing.T) {
	neg := &stubNegotiations{}
	router, token := newTestServer(t, neg, newMemoryRedis())
	body := `{"seller_uid":"vendor-1","product_id":"` + uuid.NewString() + `","price":"10","quantity":3}`

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/negotiations", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "start-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		if i == 0 {
			first = rec.Body.String()
			continue
		}
		require.Equal(t, first, rec.Body.String())
	}
	require.Equal(t, 1, neg.starts)
}

func TestMutationsAreRateLimited(t *testing.T) {
	neg := &stubNegotiations{}
	router, token := newTestServer(t, neg, newMemoryRedis())
	body := `{"seller_uid":"vendor-1","product_id":"` + uuid.NewString() + `","price":"10","quantity":3}`

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/negotiations", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	require.Equal(t, 2, neg.starts)
}

func TestCORSPreflightAllowsCancel(t *testing.T) {
	router, _ := newTestServer(t, &stubNegotiations{}, newMemoryRedis())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/negotiations/"+uuid.NewString(), nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}
