package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/apierrors"
	"github.com/drichman1-maker/coin-agg/internal/config"
	"github.com/drichman1-maker/coin-agg/internal/crypto"
	"github.com/drichman1-maker/coin-agg/internal/handler"
	"github.com/drichman1-maker/coin-agg/internal/health"
	"github.com/drichman1-maker/coin-agg/internal/metrics"
	"github.com/drichman1-maker/coin-agg/internal/middleware"
	"github.com/drichman1-maker/coin-agg/internal/model"
	"github.com/drichman1-maker/coin-agg/internal/ratelimit"
)

// fakeCounterStore is an in-memory stand-in for the Redis window counters.
type fakeCounterStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	failWith error
}

func (f *fakeCounterStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

type fakeDraftStore struct {
	drafts []*model.Draft
	nextID int64
}

func (f *fakeDraftStore) Insert(ctx context.Context, draft *model.Draft) error {
	f.nextID++
	draft.ID = f.nextID
	draft.CreatedAt = time.Now().UTC()
	draft.ExpiresAt = draft.CreatedAt.Add(24 * time.Hour)
	f.drafts = append(f.drafts, draft)
	return nil
}

func (f *fakeDraftStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeDraftStore) Ping(ctx context.Context) error { return nil }
func (f *fakeDraftStore) Close()                         {}

type fakeReceiptStore struct{}

func (f *fakeReceiptStore) ActiveReceipts(ctx context.Context, tenantID string, now time.Time) ([]*model.Receipt, error) {
	return nil, nil
}

type fakeTaskQueue struct {
	tasks []*model.BotTask
}

func (f *fakeTaskQueue) Enqueue(ctx context.Context, task *model.BotTask) error {
	f.tasks = append(f.tasks, task)
	return nil
}
func (f *fakeTaskQueue) Ping(ctx context.Context) error { return nil }

type fakeTokenRegistry struct{}

func (f *fakeTokenRegistry) Register(ctx context.Context, tenantID, token string, ttl time.Duration) error {
	return nil
}

func newTestServer(t *testing.T, counters *fakeCounterStore, quota int) (*Server, *fakeDraftStore, *fakeTaskQueue) {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultConfig()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cipher, err := crypto.New(key, "test", logger)
	require.NoError(t, err)

	m := metrics.NewMetrics()
	errorHandler := apierrors.NewHandler(logger)
	limiter := ratelimit.NewLimiter(counters, quota, 65*time.Second, logger)
	admission := middleware.NewAdmissionGate(limiter, errorHandler, m, BypassPaths, logger)

	drafts := &fakeDraftStore{}
	queue := &fakeTaskQueue{}
	handlers := handler.NewHandlers(
		cipher,
		drafts,
		&fakeReceiptStore{},
		queue,
		&fakeTokenRegistry{},
		errorHandler,
		m,
		time.Second,
		logger,
	)
	healthCheck := health.NewHealthCheck(drafts, queue, logger)

	srv := NewServer(cfg, handlers, healthCheck, admission, errorHandler, m, logger)
	srv.SetupRoutes()
	return srv, drafts, queue
}

func doRequest(srv *Server, method, path, tenantID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenantID != "" {
		req.Header.Set(middleware.TenantHeader, tenantID)
	}
	w := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(w, req)
	return w
}

func TestHealthBypassesAdmission(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCounterStore{}, 100)

	w := doRequest(srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestEndToEndDraftCreation(t *testing.T) {
	srv, drafts, _ := newTestServer(t, &fakeCounterStore{}, 100)

	w := doRequest(srv, http.MethodPost, "/v1/drafts", "abc123", map[string]string{
		"content": "hello",
		"type":    "email",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp model.Draft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.AppID)
	assert.Equal(t, model.DraftTypeEmail, resp.Type)
	assert.Equal(t, "hello", resp.Content)
	assert.True(t, resp.ExpiresAt.Equal(resp.CreatedAt.Add(24*time.Hour)))

	require.Len(t, drafts.drafts, 1)
	assert.NotEqual(t, "hello", drafts.drafts[0].Content)
}

func TestEndToEndQuotaEnforcement(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCounterStore{}, 100)

	// Requests 1-100 succeed
	for i := 1; i <= 100; i++ {
		w := doRequest(srv, http.MethodGet, "/v1/subscriptions", "abc123", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d should be admitted", i)
	}

	// Request 101 is rejected with the quota error
	w := doRequest(srv, http.MethodGet, "/v1/subscriptions", "abc123", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestEndToEndFailOpenDuringCounterOutage(t *testing.T) {
	counters := &fakeCounterStore{failWith: errors.New("connection refused")}
	srv, _, _ := newTestServer(t, counters, 1)

	for i := 0; i < 10; i++ {
		w := doRequest(srv, http.MethodGet, "/v1/subscriptions", "abc123", nil)
		require.Equal(t, http.StatusOK, w.Code, "requests are admitted while the counter store is down")
	}
}

func TestEndToEndTaskEnqueue(t *testing.T) {
	srv, _, queue := newTestServer(t, &fakeCounterStore{}, 100)

	w := doRequest(srv, http.MethodPost, "/v1/bots/trigger", "abc123", map[string]interface{}{
		"type":    "email",
		"payload": map[string]interface{}{"to": "someone"},
	})

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp handler.TriggerTaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.NotEmpty(t, resp.TaskID)
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, resp.TaskID, queue.tasks[0].ID)
}

func TestCORSPreflightAnsweredWithoutTenant(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCounterStore{}, 100)

	req := httptest.NewRequest(http.MethodOptions, "/v1/drafts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", middleware.TenantHeader)
	w := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.TenantHeader)
}

func TestUnmatchedPathsPassThroughChain(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCounterStore{}, 100)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set(middleware.TenantHeader, "abc123")
	w := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
	// The chain wraps the router, so even 404 responses carry a
	// request ID and CORS headers.
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodMismatchPassesThroughChain(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCounterStore{}, 100)

	req := httptest.NewRequest(http.MethodDelete, "/v1/drafts", nil)
	req.Header.Set(middleware.TenantHeader, "abc123")
	w := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMissingTenantRejectedAtRouter(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCounterStore{}, 100)

	w := doRequest(srv, http.MethodPost, "/v1/drafts", "", map[string]string{
		"content": "hello",
		"type":    "email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}
