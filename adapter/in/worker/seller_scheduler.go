package worker

import (
	"context"
	"sync"
	"time"

	"seller_server/core/port/out"
	"seller_server/pkg/logger"
)

// =============================================================================
// Delay Scheduler
// =============================================================================

// DelayScheduler implements out.ResponseScheduler with in-process timers.
// When a timer fires the job is published to the queue, so the reply itself
// runs on the worker pool with the usual retry handling. Pending timers are
// lost on restart; the next ingestion run reschedules still-pending
// messages.
type DelayScheduler struct {
	producer out.JobProducer
	maxDelay time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

// NewDelayScheduler creates a scheduler. maxDelay caps the per-user
// configured delay; zero means no cap.
func NewDelayScheduler(producer out.JobProducer, maxDelay time.Duration) *DelayScheduler {
	return &DelayScheduler{
		producer: producer,
		maxDelay: maxDelay,
		timers:   make(map[int64]*time.Timer),
	}
}

var _ out.ResponseScheduler = (*DelayScheduler)(nil)

// ScheduleAutoResponse arms a timer for the message. Rescheduling the same
// message resets its timer.
func (s *DelayScheduler) ScheduleAutoResponse(ctx context.Context, job *out.AutoResponseJob, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	if s.maxDelay > 0 && delay > s.maxDelay {
		delay = s.maxDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if existing, ok := s.timers[job.MessageID]; ok {
		existing.Stop()
	}

	messageID := job.MessageID
	s.timers[messageID] = time.AfterFunc(delay, func() {
		s.fire(job)
	})

	logger.Debug("[DelayScheduler] armed auto-response for message %d in %s", messageID, delay)
	return nil
}

// CancelForMessage drops the pending timer for a message, if any.
func (s *DelayScheduler) CancelForMessage(messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[messageID]; ok {
		timer.Stop()
		delete(s.timers, messageID)
		logger.Debug("[DelayScheduler] cancelled auto-response for message %d", messageID)
	}
}

// Stop cancels all pending timers.
func (s *DelayScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// PendingCount returns the number of armed timers.
func (s *DelayScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *DelayScheduler) fire(job *out.AutoResponseJob) {
	s.mu.Lock()
	delete(s.timers, job.MessageID)
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.producer.PublishAutoResponse(ctx, job); err != nil {
		logger.Error("[DelayScheduler] failed to publish auto-response for message %d: %v", job.MessageID, err)
	}
}
