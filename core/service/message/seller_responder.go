package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"
	"seller_server/core/service/classification"
	"seller_server/pkg/logger"
)

// =============================================================================
// AutoResponder - delayed auto-response handler
// =============================================================================

// AutoResponder executes scheduled auto-response jobs. Everything decided at
// schedule time is re-validated here: the human may have replied, the
// message may have been escalated, or the settings may have changed during
// the delay.
type AutoResponder struct {
	marketplace out.MarketplacePort
	messageRepo out.MessageRepository
	userRepo    out.UserRepository
	classifier  *classification.Classifier
}

func NewAutoResponder(
	marketplace out.MarketplacePort,
	messageRepo out.MessageRepository,
	userRepo out.UserRepository,
	classifier *classification.Classifier,
) *AutoResponder {
	return &AutoResponder{
		marketplace: marketplace,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		classifier:  classifier,
	}
}

// Handle runs one auto-response job. A skip is not an error; an error means
// the job itself could not make a decision.
func (r *AutoResponder) Handle(ctx context.Context, job *out.AutoResponseJob) error {
	msg, err := r.messageRepo.GetByID(ctx, job.UserID, job.MessageID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			logger.Warn("[AutoResponder] message %d no longer exists, dropping job", job.MessageID)
			return nil
		}
		return fmt.Errorf("load message %d: %w", job.MessageID, err)
	}

	// Only still-pending, non-escalated messages get an automatic reply.
	if msg.Status != domain.StatusPending || msg.Escalated {
		logger.Debug("[AutoResponder] message %d is %s (escalated=%v), skipping", msg.ID, msg.Status, msg.Escalated)
		return nil
	}
	if !msg.Repliable() {
		return nil
	}

	user, err := r.userRepo.GetByID(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", job.UserID, err)
	}
	settings := user.Settings
	if !settings.Enabled {
		return nil
	}
	if user.Credentials == nil || user.Credentials.AccessToken == "" {
		logger.Warn("[AutoResponder] user %s has no credentials, escalating message %d", user.ID, msg.ID)
		r.escalate(ctx, msg.ID)
		return nil
	}

	if r.dailyCapReached(ctx, user) {
		logger.Info("[AutoResponder] daily response cap reached for user %s, leaving message %d pending", user.ID, msg.ID)
		return nil
	}

	responseText := r.classifier.RenderTemplate(msg.Category, settings.Templates, senderName(msg))

	reply := &out.OutgoingReply{
		RecipientUsername: *msg.SenderUsername,
		ItemID:            *msg.ItemID,
		ParentExternalID:  msg.ExternalID,
		Body:              responseText,
	}
	if err := r.marketplace.SendReply(ctx, user.Credentials, reply); err != nil {
		// Fail open to a human: the message stays pending but gets flagged.
		logger.Error("[AutoResponder] send failed for message %d: %v", msg.ID, err)
		r.escalate(ctx, msg.ID)
		return nil
	}

	if err := r.messageRepo.RecordResponse(ctx, msg.ID, responseText, domain.StatusAutoResponded, true); err != nil {
		logger.Error("[AutoResponder] reply sent but record update failed for message %d: %v", msg.ID, err)
		return nil
	}

	logger.Info("[AutoResponder] auto-responded to message %d (category=%s)", msg.ID, msg.Category)
	return nil
}

func (r *AutoResponder) dailyCapReached(ctx context.Context, user *domain.User) bool {
	limit := user.Settings.MaxDailyResponses
	if limit <= 0 {
		return false
	}
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := r.messageRepo.CountAutoResponsesSince(ctx, user.ID, dayStart)
	if err != nil {
		logger.Warn("[AutoResponder] daily cap check failed for user %s: %v", user.ID, err)
		return false
	}
	return count >= limit
}

func (r *AutoResponder) escalate(ctx context.Context, messageID int64) {
	if err := r.messageRepo.Escalate(ctx, messageID); err != nil {
		logger.Error("[AutoResponder] failed to escalate message %d: %v", messageID, err)
	}
}

func senderName(msg *domain.Message) string {
	if msg.SenderUsername == nil {
		return ""
	}
	return *msg.SenderUsername
}
