package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"seller_server/core/port/out"

	"github.com/google/uuid"
)

type fakeProducer struct {
	mu        sync.Mutex
	responses []*out.AutoResponseJob
	syncs     []*out.SyncJob
}

func (p *fakeProducer) PublishSync(ctx context.Context, job *out.SyncJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncs = append(p.syncs, job)
	return nil
}

func (p *fakeProducer) PublishAutoResponse(ctx context.Context, job *out.AutoResponseJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, job)
	return nil
}

func (p *fakeProducer) responseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.responses)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestDelaySchedulerFires(t *testing.T) {
	producer := &fakeProducer{}
	scheduler := NewDelayScheduler(producer, 0)
	defer scheduler.Stop()

	job := &out.AutoResponseJob{UserID: uuid.New(), MessageID: 42}
	if err := scheduler.ScheduleAutoResponse(context.Background(), job, 10*time.Millisecond); err != nil {
		t.Fatalf("ScheduleAutoResponse() error = %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return producer.responseCount() == 1 }) {
		t.Fatalf("responseCount = %d, want 1", producer.responseCount())
	}

	producer.mu.Lock()
	got := producer.responses[0]
	producer.mu.Unlock()
	if got.MessageID != 42 {
		t.Errorf("MessageID = %d, want 42", got.MessageID)
	}
	if scheduler.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after fire", scheduler.PendingCount())
	}
}

func TestDelaySchedulerCancel(t *testing.T) {
	producer := &fakeProducer{}
	scheduler := NewDelayScheduler(producer, 0)
	defer scheduler.Stop()

	job := &out.AutoResponseJob{UserID: uuid.New(), MessageID: 7}
	if err := scheduler.ScheduleAutoResponse(context.Background(), job, 50*time.Millisecond); err != nil {
		t.Fatalf("ScheduleAutoResponse() error = %v", err)
	}

	scheduler.CancelForMessage(7)

	if scheduler.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after cancel", scheduler.PendingCount())
	}

	time.Sleep(100 * time.Millisecond)
	if n := producer.responseCount(); n != 0 {
		t.Errorf("responseCount = %d, want 0 after cancel", n)
	}
}

func TestDelaySchedulerRescheduleResetsTimer(t *testing.T) {
	producer := &fakeProducer{}
	scheduler := NewDelayScheduler(producer, 0)
	defer scheduler.Stop()

	job := &out.AutoResponseJob{UserID: uuid.New(), MessageID: 9}
	scheduler.ScheduleAutoResponse(context.Background(), job, time.Hour)
	scheduler.ScheduleAutoResponse(context.Background(), job, 10*time.Millisecond)

	if scheduler.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", scheduler.PendingCount())
	}
	if !waitFor(t, time.Second, func() bool { return producer.responseCount() == 1 }) {
		t.Fatalf("responseCount = %d, want exactly 1", producer.responseCount())
	}
}

func TestDelaySchedulerStopDropsTimers(t *testing.T) {
	producer := &fakeProducer{}
	scheduler := NewDelayScheduler(producer, 0)

	job := &out.AutoResponseJob{UserID: uuid.New(), MessageID: 11}
	scheduler.ScheduleAutoResponse(context.Background(), job, 20*time.Millisecond)
	scheduler.Stop()

	time.Sleep(60 * time.Millisecond)
	if n := producer.responseCount(); n != 0 {
		t.Errorf("responseCount = %d, want 0 after Stop", n)
	}

	// Scheduling after Stop is a no-op.
	scheduler.ScheduleAutoResponse(context.Background(), job, time.Millisecond)
	if scheduler.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after Stop", scheduler.PendingCount())
	}
}

func TestParsePayload(t *testing.T) {
	userID := uuid.New().String()
	msg := NewMessage(JobAutoResponse, map[string]any{
		"user_id":    userID,
		"message_id": float64(123),
	})

	payload, err := ParsePayload[AutoResponsePayload](msg)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if payload.UserID != userID {
		t.Errorf("UserID = %q, want %q", payload.UserID, userID)
	}
	if payload.MessageID != 123 {
		t.Errorf("MessageID = %d, want 123", payload.MessageID)
	}
}
