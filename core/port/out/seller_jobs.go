package out

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Job Producer
// =============================================================================

// AutoResponseJob identifies one delayed auto-response.
type AutoResponseJob struct {
	UserID    uuid.UUID `json:"user_id"`
	MessageID int64     `json:"message_id"`
}

// SyncJob triggers one ingestion run for one user.
type SyncJob struct {
	UserID uuid.UUID `json:"user_id"`
}

// ResponseScheduler queues delayed auto-response jobs. Scheduling is
// fire-and-forget; the handler re-validates message state at fire time, so
// a stale schedule is harmless.
type ResponseScheduler interface {
	// ScheduleAutoResponse queues an auto-response to fire after delay.
	ScheduleAutoResponse(ctx context.Context, job *AutoResponseJob, delay time.Duration) error

	// CancelForMessage drops any not-yet-fired schedule for the message.
	// Called when a human replies first.
	CancelForMessage(messageID int64)
}

// JobProducer publishes jobs to the worker queue.
type JobProducer interface {
	// PublishSync queues an ingestion run for one user.
	PublishSync(ctx context.Context, job *SyncJob) error

	// PublishAutoResponse queues a due auto-response for processing.
	PublishAutoResponse(ctx context.Context, job *AutoResponseJob) error
}
