// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"seller_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamMessageSync  = "messages:sync"
	StreamAutoResponse = "messages:auto_response"
)

// RedisProducer implements out.JobProducer using Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// PublishSync publishes a message sync job.
func (p *RedisProducer) PublishSync(ctx context.Context, job *out.SyncJob) error {
	return p.publish(ctx, StreamMessageSync, job)
}

// PublishAutoResponse publishes a due auto-response job.
func (p *RedisProducer) PublishAutoResponse(ctx context.Context, job *out.AutoResponseJob) error {
	return p.publish(ctx, StreamAutoResponse, job)
}

// publish adds a job to a stream.
func (p *RedisProducer) publish(ctx context.Context, stream string, job interface{}) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

// Ensure RedisProducer implements out.JobProducer
var _ out.JobProducer = (*RedisProducer)(nil)
