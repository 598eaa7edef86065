package worker

import (
	"context"
	"fmt"

	"seller_server/core/port/in"
	"seller_server/core/port/out"
	"seller_server/core/service/message"
	"seller_server/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Sync Processor
// =============================================================================

// SyncProcessor runs ingestion jobs.
type SyncProcessor struct {
	messageService in.MessageService
}

func NewSyncProcessor(messageService in.MessageService) *SyncProcessor {
	return &SyncProcessor{messageService: messageService}
}

func (p *SyncProcessor) ProcessSync(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[SyncPayload](msg)
	if err != nil {
		return fmt.Errorf("invalid sync payload: %w", err)
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", payload.UserID, err)
	}

	result, err := p.messageService.Sync(ctx, userID)
	if err != nil {
		return err
	}

	logger.Info("[SyncProcessor] user %s: %d new of %d pulled", userID, result.NewMessages, result.TotalPulled)
	return nil
}

// =============================================================================
// Auto-Response Processor
// =============================================================================

// ResponseProcessor runs due auto-response jobs.
type ResponseProcessor struct {
	responder *message.AutoResponder
}

func NewResponseProcessor(responder *message.AutoResponder) *ResponseProcessor {
	return &ResponseProcessor{responder: responder}
}

func (p *ResponseProcessor) ProcessAutoResponse(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[AutoResponsePayload](msg)
	if err != nil {
		return fmt.Errorf("invalid auto-response payload: %w", err)
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", payload.UserID, err)
	}

	return p.responder.Handle(ctx, &out.AutoResponseJob{
		UserID:    userID,
		MessageID: payload.MessageID,
	})
}
