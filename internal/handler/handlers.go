// Package handler provides HTTP request handlers for the API backend.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/apierrors"
	"github.com/drichman1-maker/coin-agg/internal/crypto"
	"github.com/drichman1-maker/coin-agg/internal/metrics"
	"github.com/drichman1-maker/coin-agg/internal/middleware"
	"github.com/drichman1-maker/coin-agg/internal/model"
	"github.com/drichman1-maker/coin-agg/internal/store"
)

// TokenTTL is how long a registered push token is retained.
const TokenTTL = 24 * time.Hour

// MaxTokenLength bounds the accepted push token length.
const MaxTokenLength = 256

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	cipher        *crypto.Cipher
	drafts        store.DraftStore
	receipts      store.ReceiptStore
	taskQueue     store.TaskQueue
	tokenRegistry store.TokenRegistry
	errorHandler  *apierrors.Handler
	metrics       *metrics.Metrics
	timeout       time.Duration
	logger        *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	cipher *crypto.Cipher,
	drafts store.DraftStore,
	receipts store.ReceiptStore,
	taskQueue store.TaskQueue,
	tokenRegistry store.TokenRegistry,
	errorHandler *apierrors.Handler,
	m *metrics.Metrics,
	timeout time.Duration,
	logger *zap.Logger,
) *Handlers {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handlers{
		cipher:        cipher,
		drafts:        drafts,
		receipts:      receipts,
		taskQueue:     taskQueue,
		tokenRegistry: tokenRegistry,
		errorHandler:  errorHandler,
		metrics:       m,
		timeout:       timeout,
		logger:        logger,
	}
}

// CreateDraftRequest is the body of POST /v1/drafts.
type CreateDraftRequest struct {
	Content string          `json:"content"`
	Type    model.DraftType `json:"type"`
}

// CreateDraft handles POST /v1/drafts requests. Content is encrypted before
// it is persisted and decrypted again for the response.
func (h *Handlers) CreateDraft(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	tenantID, ok := middleware.TenantID(r.Context())
	if !ok {
		h.errorHandler.WriteValidationError(w, "missing tenant context", requestID)
		return
	}

	var req CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body", requestID)
		return
	}
	if !req.Type.Valid() {
		h.errorHandler.WriteValidationError(w, "type must be one of: email, social, support", requestID)
		return
	}

	encrypted, err := h.cipher.Encrypt(req.Content)
	if err != nil {
		h.logger.Error("failed to encrypt draft content",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.errorHandler.WriteInternalError(w, "failed to store draft", requestID)
		return
	}

	draft := &model.Draft{
		AppID:   tenantID,
		Type:    req.Type,
		Content: encrypted,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.drafts.Insert(ctx, draft); err != nil {
		h.logger.Error("failed to insert draft",
			zap.String("request_id", requestID),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		h.errorHandler.WriteInternalError(w, "failed to store draft", requestID)
		return
	}

	resp := model.Draft{
		ID:        draft.ID,
		AppID:     draft.AppID,
		Type:      draft.Type,
		Content:   h.cipher.Decrypt(draft.Content),
		CreatedAt: draft.CreatedAt,
		ExpiresAt: draft.ExpiresAt,
	}

	h.writeJSONResponse(w, http.StatusCreated, resp)
}

// TriggerTaskRequest is the body of POST /v1/bots/trigger.
type TriggerTaskRequest struct {
	Type    model.TaskType         `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// TriggerTaskResponse is the body returned after a successful enqueue.
type TriggerTaskResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// TriggerTask handles POST /v1/bots/trigger requests. A queue failure is a
// 503: silently dropping a task would be worse than a visible error, so
// this path fails closed while the rate limiter fails open.
func (h *Handlers) TriggerTask(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	tenantID, ok := middleware.TenantID(r.Context())
	if !ok {
		h.errorHandler.WriteValidationError(w, "missing tenant context", requestID)
		return
	}

	var req TriggerTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body", requestID)
		return
	}
	if !req.Type.Valid() {
		h.errorHandler.WriteValidationError(w, "type must be one of: email, social", requestID)
		return
	}
	if req.Payload == nil {
		h.errorHandler.WriteValidationError(w, "payload is required", requestID)
		return
	}

	serialized, err := json.Marshal(req.Payload)
	if err != nil {
		h.errorHandler.WriteValidationError(w, "payload is not serializable", requestID)
		return
	}
	if len(serialized) > model.MaxTaskPayloadBytes {
		h.errorHandler.WriteValidationError(w, "payload too large", requestID)
		return
	}

	task := &model.BotTask{
		ID:      uuid.New().String(),
		Type:    req.Type,
		AppID:   tenantID,
		Payload: req.Payload,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.taskQueue.Enqueue(ctx, task); err != nil {
		h.logger.Error("failed to enqueue task",
			zap.String("request_id", requestID),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		h.errorHandler.WriteServiceUnavailable(w, "task queue unavailable", requestID)
		return
	}

	h.metrics.RecordTaskEnqueued(string(task.Type))
	h.writeJSONResponse(w, http.StatusAccepted, TriggerTaskResponse{
		Status: "queued",
		TaskID: task.ID,
	})
}

// RegisterTokenRequest is the body of POST /v1/ios/register.
type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// RegisterToken handles POST /v1/ios/register requests.
func (h *Handlers) RegisterToken(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	tenantID, ok := middleware.TenantID(r.Context())
	if !ok {
		h.errorHandler.WriteValidationError(w, "missing tenant context", requestID)
		return
	}

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body", requestID)
		return
	}
	if req.Token == "" {
		h.errorHandler.WriteValidationError(w, "token is required", requestID)
		return
	}
	if len(req.Token) > MaxTokenLength {
		h.errorHandler.WriteValidationError(w, "token too long", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.tokenRegistry.Register(ctx, tenantID, req.Token, TokenTTL); err != nil {
		h.logger.Error("failed to register push token",
			zap.String("request_id", requestID),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		h.errorHandler.WriteServiceUnavailable(w, "token registry unavailable", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "registered"})
}

// SubscriptionResponse is the body of GET /v1/subscriptions.
type SubscriptionResponse struct {
	Active   bool             `json:"active"`
	Receipts []*model.Receipt `json:"receipts"`
}

// CheckSubscription handles GET /v1/subscriptions requests.
func (h *Handlers) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	tenantID, ok := middleware.TenantID(r.Context())
	if !ok {
		h.errorHandler.WriteValidationError(w, "missing tenant context", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	receipts, err := h.receipts.ActiveReceipts(ctx, tenantID, time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to query receipts",
			zap.String("request_id", requestID),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		h.errorHandler.WriteInternalError(w, "failed to check subscription", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, SubscriptionResponse{
		Active:   len(receipts) > 0,
		Receipts: receipts,
	})
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
