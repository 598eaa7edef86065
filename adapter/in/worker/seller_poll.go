package worker

import (
	"context"
	"time"

	"seller_server/core/port/out"
	"seller_server/pkg/logger"
)

// =============================================================================
// Poll Scheduler
// =============================================================================

const defaultPollInterval = 5 * time.Minute

// PollScheduler periodically queues an ingestion run for every active user
// with stored credentials. One user failing never blocks the others; each
// run is an independent queue job.
type PollScheduler struct {
	userRepo out.UserRepository
	producer out.JobProducer
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPollScheduler creates a new poll scheduler. interval <= 0 selects the
// default.
func NewPollScheduler(userRepo out.UserRepository, producer out.JobProducer, interval time.Duration) *PollScheduler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PollScheduler{
		userRepo: userRepo,
		producer: producer,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the poll scheduler.
func (s *PollScheduler) Start() {
	logger.Info("[PollScheduler] Starting with interval %s", s.interval)
	go s.run()
}

// Stop stops the poll scheduler.
func (s *PollScheduler) Stop() {
	logger.Info("[PollScheduler] Stopping...")
	s.cancel()
}

func (s *PollScheduler) run() {
	// brief delay so the queue consumer is up before the first round
	time.Sleep(10 * time.Second)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pollOnce()
	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[PollScheduler] Stopped")
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

// pollOnce queues a sync job for every syncable user.
func (s *PollScheduler) pollOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	users, err := s.userRepo.ListActiveWithCredentials(ctx)
	if err != nil {
		logger.Error("[PollScheduler] Failed to list users: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}

	logger.Info("[PollScheduler] Queueing sync for %d users", len(users))

	for _, user := range users {
		job := &out.SyncJob{UserID: user.ID}
		if err := s.producer.PublishSync(ctx, job); err != nil {
			logger.Error("[PollScheduler] Failed to publish sync job for user %s: %v", user.ID, err)
		}
	}
}
