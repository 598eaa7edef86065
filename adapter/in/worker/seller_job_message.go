package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// JobType represents the type of a job.
type JobType = string

const (
	// JobMessageSync pulls new marketplace messages for one user.
	JobMessageSync JobType = "messages.sync"

	// JobAutoResponse sends a due auto-response for one message.
	JobAutoResponse JobType = "messages.auto_response"
)

// Message is the envelope jobs travel in between queue and pool.
type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
	}
}

// NewPriorityMessage creates a message routed to the priority workers.
func NewPriorityMessage(jobType string, payload map[string]any) *Message {
	msg := NewMessage(jobType, payload)
	msg.Priority = PriorityHigh
	return msg
}

// IsPriority checks if message should go to the priority queue.
func (m *Message) IsPriority() bool {
	return m.Priority >= PriorityHigh
}

// SyncPayload triggers one ingestion run.
type SyncPayload struct {
	UserID string `json:"user_id"` // parsed with uuid.Parse at processing time
}

// AutoResponsePayload identifies one due auto-response.
type AutoResponsePayload struct {
	UserID    string `json:"user_id"`
	MessageID int64  `json:"message_id"`
}
