package worker

import (
	"context"

	"seller_server/pkg/logger"

	"github.com/goccy/go-json"

	"seller_server/adapter/out/messaging"
)

// Handler routes pool messages to their processors.
type Handler struct {
	syncProcessor     *SyncProcessor
	responseProcessor *ResponseProcessor
}

func NewHandler(syncProcessor *SyncProcessor, responseProcessor *ResponseProcessor) *Handler {
	return &Handler{
		syncProcessor:     syncProcessor,
		responseProcessor: responseProcessor,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobMessageSync:
		return h.syncProcessor.ProcessSync(ctx, msg)
	case JobAutoResponse:
		return h.responseProcessor.ProcessAutoResponse(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// =============================================================================
// Stream Bridge
// =============================================================================

// StreamBridge feeds jobs read from Redis Streams into the pool. It maps
// stream names to job types; auto-responses go to the priority workers.
type StreamBridge struct {
	pool *Pool
}

func NewStreamBridge(pool *Pool) *StreamBridge {
	return &StreamBridge{pool: pool}
}

var _ messaging.JobHandler = (*StreamBridge)(nil)

func (b *StreamBridge) Handle(ctx context.Context, stream string, data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	var msg *Message
	switch stream {
	case messaging.StreamMessageSync:
		msg = NewMessage(JobMessageSync, payload)
	case messaging.StreamAutoResponse:
		msg = NewPriorityMessage(JobAutoResponse, payload)
	default:
		logger.Warn("Unknown stream: %s", stream)
		return nil
	}

	if !b.pool.Submit(msg) {
		logger.Warn("Pool rejected job from stream %s", stream)
	}
	return nil
}
