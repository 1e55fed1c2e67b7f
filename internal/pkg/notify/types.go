package notify

import (
	"encoding/json"
	"time"
)

// IntentType defines the kind of notification intent
type IntentType string

const (
	IntentTypeRelease  IntentType = "release"
	IntentTypeReminder IntentType = "reminder"
)

// IntentStatus defines the delivery status of an intent
type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusProcessing IntentStatus = "processing"
	IntentStatusDelivered  IntentStatus = "delivered"
	IntentStatusFailed     IntentStatus = "failed"
	IntentStatusRetrying   IntentStatus = "retrying"
)

// Intent represents a queued notification intent. Delivery failures are the
// notification subsystem's problem; trigger evaluation never waits on them.
type Intent struct {
	ID          string                 `json:"id"`
	Type        IntentType             `json:"type"`
	Status      IntentStatus           `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	DeliveredAt *time.Time             `json:"delivered_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ReleasePayload carries a fired trigger whose vault content must be
// released to the executors.
type ReleasePayload struct {
	TriggerID uint   `json:"trigger_id"`
	VaultID   uint   `json:"vault_id"`
	VaultName string `json:"vault_name"`
	UserID    uint   `json:"user_id"`
}

// ToMap converts the payload to a map for storage
func (p ReleasePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"trigger_id": p.TriggerID,
		"vault_id":   p.VaultID,
		"vault_name": p.VaultName,
		"user_id":    p.UserID,
	}
}

// ReleasePayloadFromMap creates a payload from a map
func ReleasePayloadFromMap(data map[string]interface{}) (*ReleasePayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ReleasePayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ReminderPayload carries a proof-of-life reminder for a user who has been
// inactive for exactly one of the reminder thresholds.
type ReminderPayload struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	DaysInactive int    `json:"days_inactive"`
}

// ToMap converts the payload to a map for storage
func (p ReminderPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       p.UserID,
		"email":         p.Email,
		"days_inactive": p.DaysInactive,
	}
}

// ReminderPayloadFromMap creates a payload from a map
func ReminderPayloadFromMap(data map[string]interface{}) (*ReminderPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ReminderPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the intent can be retried
func (i *Intent) IsRetryable() bool {
	return i.Status == IntentStatusFailed && i.RetryCount < i.MaxRetries
}

// MarkAsProcessing updates the intent status to processing
func (i *Intent) MarkAsProcessing() {
	i.Status = IntentStatusProcessing
	i.UpdatedAt = time.Now()
}

// MarkAsDelivered updates the intent status to delivered
func (i *Intent) MarkAsDelivered() {
	now := time.Now()
	i.Status = IntentStatusDelivered
	i.UpdatedAt = now
	i.DeliveredAt = &now
	i.ErrorMsg = ""
}

// MarkAsFailed updates the intent status to failed
func (i *Intent) MarkAsFailed(errorMsg string) {
	i.Status = IntentStatusFailed
	i.UpdatedAt = time.Now()
	i.ErrorMsg = errorMsg
	i.RetryCount++
}
