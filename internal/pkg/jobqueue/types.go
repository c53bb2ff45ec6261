package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeBotSuppress retries the implicit bot disable before a human reply.
	JobTypeBotSuppress JobType = "bot_suppress"
	// JobTypeConversationRepair rebuilds a conversation preview from its messages.
	JobTypeConversationRepair JobType = "conversation_repair"
	// JobTypeUsageRecompute refreshes one cached usage figure.
	JobTypeUsageRecompute JobType = "usage_recompute"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// BotSuppressJobPayload identifies the contact whose bot must be disabled
type BotSuppressJobPayload struct {
	TenantID   uint   `json:"tenant_id"`
	ContactID  string `json:"contact"`
	Instance   string `json:"instance"`
	OperatorID *uint  `json:"operator_id,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p BotSuppressJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"tenant_id": p.TenantID,
		"contact":   p.ContactID,
		"instance":  p.Instance,
	}
	if p.OperatorID != nil {
		m["operator_id"] = *p.OperatorID
	}
	return m
}

// BotSuppressJobPayloadFromMap creates a payload from a map
func BotSuppressJobPayloadFromMap(data map[string]interface{}) (*BotSuppressJobPayload, error) {
	var payload BotSuppressJobPayload
	return &payload, fromMap(data, &payload)
}

// ConversationRepairJobPayload identifies a conversation with a stale preview
type ConversationRepairJobPayload struct {
	TenantID       uint `json:"tenant_id"`
	ConversationID uint `json:"conversation_id"`
}

// ToMap converts the payload to a map for storage
func (p ConversationRepairJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":       p.TenantID,
		"conversation_id": p.ConversationID,
	}
}

// ConversationRepairJobPayloadFromMap creates a payload from a map
func ConversationRepairJobPayloadFromMap(data map[string]interface{}) (*ConversationRepairJobPayload, error) {
	var payload ConversationRepairJobPayload
	return &payload, fromMap(data, &payload)
}

// UsageRecomputeJobPayload names the usage figure to refresh
type UsageRecomputeJobPayload struct {
	TenantID uint   `json:"tenant_id"`
	Resource string `json:"resource"`
}

// ToMap converts the payload to a map for storage
func (p UsageRecomputeJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id": p.TenantID,
		"resource":  p.Resource,
	}
}

// UsageRecomputeJobPayloadFromMap creates a payload from a map
func UsageRecomputeJobPayloadFromMap(data map[string]interface{}) (*UsageRecomputeJobPayload, error) {
	var payload UsageRecomputeJobPayload
	return &payload, fromMap(data, &payload)
}

// payloads travel as JSON, so numbers come back as float64; a round trip
// through encoding/json restores the typed struct
func fromMap(data map[string]interface{}, v interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, v)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
