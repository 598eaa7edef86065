package message

import (
	"context"
	"errors"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/in"
	"seller_server/core/port/out"
	"seller_server/pkg/apperr"
	"seller_server/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Sync - marketplace ingestion
// =============================================================================

// Sync pulls the recent message window for one user, persists what is new
// and schedules auto-responses for eligible messages. Individual message
// failures are logged and skipped; the run keeps going.
func (s *Service) Sync(ctx context.Context, userID uuid.UUID) (*in.SyncResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.DatabaseError("get user", err)
	}
	if user.Credentials == nil || user.Credentials.AccessToken == "" {
		return nil, apperr.CredentialsMissing()
	}

	start := time.Now()
	result := &in.SyncResult{}

	endTime := time.Now().UTC()
	startTime := endTime.AddDate(0, 0, -s.cfg.FetchWindowDays)

	page := 1
	for {
		fetched, err := s.fetchPage(ctx, user, startTime, endTime, page, result)
		if err != nil {
			// A transient marketplace failure ends the run with whatever the
			// earlier pages already ingested; the next run picks the rest up.
			// Credential and config failures stay terminal.
			if out.IsRetryable(err) {
				logger.Warn("[MessageService.Sync] fetch page %d failed for user %s, keeping partial run: %v",
					page, userID, err)
				break
			}
			return nil, err
		}

		result.TotalPulled += len(fetched.Messages)
		for i := range fetched.Messages {
			created, err := s.ingestMessage(ctx, user, &fetched.Messages[i])
			if err != nil {
				logger.Error("[MessageService.Sync] failed to ingest message %s for user %s: %v",
					fetched.Messages[i].ExternalID, userID, err)
				continue
			}
			if created {
				result.NewMessages++
			}
		}

		if !fetched.HasMore {
			break
		}
		page++
	}

	logger.Info("[MessageService.Sync] user %s: %d pulled, %d new in %v",
		userID, result.TotalPulled, result.NewMessages, time.Since(start))
	return result, nil
}

// fetchPage fetches one page, refreshing credentials and retrying exactly
// once when the access token is rejected. The second rejection in a run is
// terminal.
func (s *Service) fetchPage(ctx context.Context, user *domain.User, startTime, endTime time.Time, page int, result *in.SyncResult) (*out.FetchResult, error) {
	opts := &out.FetchOptions{
		StartTime:      startTime,
		EndTime:        endTime,
		Page:           page,
		EntriesPerPage: s.cfg.PageSize,
	}

	fetched, err := s.marketplace.FetchMessages(ctx, user.Credentials, opts)
	if err == nil {
		return fetched, nil
	}
	if !out.IsTokenExpired(err) {
		return nil, apperr.ExternalError("marketplace", err)
	}
	if result.TokenRefreshed {
		return nil, apperr.TokenExpired("access token rejected again after refresh")
	}

	if err := s.refreshCredentials(ctx, user); err != nil {
		return nil, err
	}
	result.TokenRefreshed = true

	fetched, err = s.marketplace.FetchMessages(ctx, user.Credentials, opts)
	if err != nil {
		if out.IsTokenExpired(err) {
			return nil, apperr.TokenExpired("access token rejected again after refresh")
		}
		return nil, apperr.ExternalError("marketplace", err)
	}
	return fetched, nil
}

// refreshCredentials rotates the access token and persists it before the
// retry, so a crash mid-run does not burn the new token.
func (s *Service) refreshCredentials(ctx context.Context, user *domain.User) error {
	if !user.Credentials.Refreshable() {
		return apperr.TokenExpired("no refresh token on file, re-authentication required")
	}

	refreshed, err := s.marketplace.RefreshCredentials(ctx, user.Credentials)
	if err != nil {
		return apperr.RefreshFailed(err)
	}

	user.Credentials.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		user.Credentials.RefreshToken = refreshed.RefreshToken
	}

	if err := s.userRepo.UpdateTokens(ctx, user.ID, user.Credentials.AccessToken, user.Credentials.RefreshToken); err != nil {
		logger.Warn("[MessageService.Sync] refreshed token not persisted for user %s: %v", user.ID, err)
	} else {
		logger.Info("[MessageService.Sync] refreshed marketplace token for user %s", user.ID)
	}
	return nil
}

// ingestMessage runs one raw message through dedupe, classification and
// persistence. Returns true when a new row was created.
func (s *Service) ingestMessage(ctx context.Context, user *domain.User, raw *out.RawMessage) (bool, error) {
	exists, err := s.messageRepo.ExistsByExternalID(ctx, user.ID, raw.ExternalID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	msg := s.buildMessage(user, raw)

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		// A concurrent run won the insert race; the constraint is the
		// authoritative dedup signal.
		if errors.Is(err, out.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}

	s.archiveRaw(ctx, user.ID, raw)

	if s.autoResponseEligible(msg, user.Settings) {
		s.scheduleAutoResponse(ctx, user, msg)
	}
	return true, nil
}

// buildMessage converts a normalized marketplace message into a classified
// domain message.
func (s *Service) buildMessage(user *domain.User, raw *out.RawMessage) *domain.Message {
	msg := &domain.Message{
		UserID:          user.ID,
		ExternalID:      raw.ExternalID,
		SenderType:      raw.SenderType,
		IsSystem:        raw.IsSystem,
		Subject:         raw.Subject,
		MessageText:     raw.MessageText,
		Status:          domain.StatusPending,
		SourceTimestamp: raw.SourceTimestamp,
	}
	if msg.Subject == "" {
		msg.Subject = domain.DefaultSubject
	}
	if raw.ThreadID != "" {
		msg.ThreadID = &raw.ThreadID
	}
	if raw.SenderUsername != "" {
		msg.SenderUsername = &raw.SenderUsername
	}
	if raw.RecipientUsername != "" {
		msg.RecipientUsername = &raw.RecipientUsername
	}
	if raw.ItemID != "" {
		msg.ItemID = &raw.ItemID
	}
	if msg.SourceTimestamp.IsZero() {
		msg.SourceTimestamp = time.Now().UTC()
	}

	text := msg.ClassifiableText()
	msg.Category, msg.Sentiment, msg.Priority, msg.Escalated =
		s.classifier.Enrich(text, user.Settings.EscalationKeywords)
	return msg
}

// archiveRaw stores the original payload for audits. Best effort only.
func (s *Service) archiveRaw(ctx context.Context, userID uuid.UUID, raw *out.RawMessage) {
	if s.rawStore == nil || len(raw.Raw) == 0 {
		return
	}
	if err := s.rawStore.Archive(ctx, userID, raw.ExternalID, raw.MessageType, raw.Raw); err != nil {
		logger.Warn("[MessageService.Sync] raw archive failed for message %s: %v", raw.ExternalID, err)
	}
}

// autoResponseEligible applies the ingest-time gate. The responder
// re-validates message state at fire time, so this only has to be right
// about the snapshot it sees now.
func (s *Service) autoResponseEligible(msg *domain.Message, settings domain.AutoResponseSettings) bool {
	if !settings.Enabled {
		return false
	}
	if msg.Escalated || msg.Status != domain.StatusPending {
		return false
	}
	if !msg.Repliable() {
		return false
	}
	return s.classifier.WithinBusinessHours(settings.BusinessHours, settings.WeekdaysOnly)
}

func (s *Service) scheduleAutoResponse(ctx context.Context, user *domain.User, msg *domain.Message) {
	if s.scheduler == nil {
		return
	}
	delay := time.Duration(user.Settings.ResponseDelay) * time.Second
	job := &out.AutoResponseJob{UserID: user.ID, MessageID: msg.ID}
	if err := s.scheduler.ScheduleAutoResponse(ctx, job, delay); err != nil {
		logger.Error("[MessageService.Sync] failed to schedule auto-response for message %d: %v", msg.ID, err)
	}
}
