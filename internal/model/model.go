// Package model defines the domain types shared across stores, services and handlers.
package model

import (
	"fmt"
	"time"
)

// DraftType enumerates the kinds of drafts a tenant may store.
type DraftType string

const (
	DraftTypeEmail   DraftType = "email"
	DraftTypeSocial  DraftType = "social"
	DraftTypeSupport DraftType = "support"
)

// Valid reports whether the draft type is one of the known values.
func (t DraftType) Valid() bool {
	switch t {
	case DraftTypeEmail, DraftTypeSocial, DraftTypeSupport:
		return true
	default:
		return false
	}
}

// TaskType enumerates the kinds of background tasks that can be enqueued.
type TaskType string

const (
	TaskTypeEmail  TaskType = "email"
	TaskTypeSocial TaskType = "social"
)

// Valid reports whether the task type is one of the known values.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeEmail, TaskTypeSocial:
		return true
	default:
		return false
	}
}

// Draft is a short-lived tenant-owned payload. Content is stored encrypted.
// Drafts are write-once: there is no update path anywhere in the system.
type Draft struct {
	ID        int64     `json:"id"`
	AppID     string    `json:"app_id"`
	Type      DraftType `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Receipt records a tenant's purchase state for the subscription check.
type Receipt struct {
	ID            int64     `json:"id"`
	AppID         string    `json:"app_id"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReceiptStatusActive marks a receipt that still grants a subscription.
const ReceiptStatusActive = "active"

// BotTask is the wire form of a queued background task. Consumed exactly
// once by an external worker; never mutated after enqueue.
type BotTask struct {
	ID      string                 `json:"id"`
	Type    TaskType               `json:"type"`
	AppID   string                 `json:"app_id"`
	Payload map[string]interface{} `json:"payload"`
}

// MaxTaskPayloadBytes bounds the serialized payload of a queued task.
const MaxTaskPayloadBytes = 10000

// ValidateTenantID enforces the tenant identifier rules: non-empty,
// at most 64 characters, alphanumeric only.
func ValidateTenantID(id string) error {
	if id == "" {
		return fmt.Errorf("tenant id is empty")
	}
	if len(id) > 64 {
		return fmt.Errorf("tenant id exceeds 64 characters")
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("tenant id contains non-alphanumeric character")
		}
	}
	return nil
}
