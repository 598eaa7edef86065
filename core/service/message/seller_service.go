// Package message implements the seller inbox operations: ingestion from the
// marketplace, listing, manual replies, reporting and reply drafting.
package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/in"
	"seller_server/core/port/out"
	"seller_server/core/service/classification"
	"seller_server/pkg/apperr"
	"seller_server/pkg/logger"

	"github.com/google/uuid"
)

// Config bounds the ingestion window and page size.
type Config struct {
	FetchWindowDays int
	PageSize        int
}

// Service implements in.MessageService.
type Service struct {
	marketplace out.MarketplacePort
	messageRepo out.MessageRepository
	userRepo    out.UserRepository
	rawStore    out.RawPayloadStore
	scheduler   out.ResponseScheduler
	drafter     out.ReplyDrafter
	classifier  *classification.Classifier
	cfg         Config
}

var _ in.MessageService = (*Service)(nil)

func NewService(
	marketplace out.MarketplacePort,
	messageRepo out.MessageRepository,
	userRepo out.UserRepository,
	rawStore out.RawPayloadStore,
	scheduler out.ResponseScheduler,
	drafter out.ReplyDrafter,
	classifier *classification.Classifier,
	cfg Config,
) *Service {
	if cfg.FetchWindowDays <= 0 {
		cfg.FetchWindowDays = 30
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Service{
		marketplace: marketplace,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		rawStore:    rawStore,
		scheduler:   scheduler,
		drafter:     drafter,
		classifier:  classifier,
		cfg:         cfg,
	}
}

// =============================================================================
// List
// =============================================================================

func (s *Service) List(ctx context.Context, userID uuid.UUID, q *in.ListQuery) (*in.ListResult, error) {
	if q == nil {
		q = &in.ListQuery{}
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = 20
	}

	filter := &out.ListFilter{
		Status:   normalizeFilter(q.Status),
		Category: normalizeFilter(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Source:   q.Source,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}

	messages, total, err := s.messageRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, apperr.DatabaseError("list messages", err)
	}

	totalPages := (total + limit - 1) / limit
	return &in.ListResult{
		Messages:      messages,
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalMessages: total,
	}, nil
}

// normalizeFilter treats "all" the same as no filter.
func normalizeFilter(v string) string {
	if v == "all" {
		return ""
	}
	return v
}

// =============================================================================
// Respond (manual reply)
// =============================================================================

func (s *Service) Respond(ctx context.Context, userID uuid.UUID, messageID int64, responseText string) (*domain.Message, error) {
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, apperr.MissingField("responseText")
	}

	msg, err := s.messageRepo.GetByID(ctx, userID, messageID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("message")
		}
		return nil, apperr.DatabaseError("get message", err)
	}

	// Repliability is checked before any network call so the caller gets a
	// clear 400 instead of a marketplace rejection.
	if msg.IsSystem || msg.SenderType != domain.SenderBuyer {
		return nil, apperr.Unsupported("replies are only available for buyer messages")
	}
	if !msg.Repliable() {
		return nil, apperr.Unsupported("message is missing the item or buyer reference required for a reply")
	}

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

	reply := &out.OutgoingReply{
		RecipientUsername: *msg.SenderUsername,
		ItemID:            *msg.ItemID,
		ParentExternalID:  msg.ExternalID,
		Body:              responseText,
	}
	if err := s.marketplace.SendReply(ctx, user.Credentials, reply); err != nil {
		if out.IsTokenExpired(err) {
			return nil, apperr.TokenExpired("marketplace token expired, run a sync to refresh")
		}
		if out.IsUnsupported(err) {
			return nil, apperr.Unsupported("the marketplace rejected the reply for this message")
		}
		return nil, apperr.ExternalError("marketplace", err)
	}

	// The human got there first: drop any pending auto-response.
	if s.scheduler != nil {
		s.scheduler.CancelForMessage(msg.ID)
	}

	if err := s.messageRepo.RecordResponse(ctx, msg.ID, responseText, domain.StatusManuallyResponded, false); err != nil {
		// The reply already went out; surface the stale record rather than
		// failing the request.
		logger.Error("[MessageService.Respond] reply sent but record update failed for message %d: %v", msg.ID, err)
	}

	updated, err := s.messageRepo.GetByID(ctx, userID, msg.ID)
	if err != nil {
		return msg, nil
	}
	return updated, nil
}

// =============================================================================
// Stats / Timeline
// =============================================================================

func (s *Service) Stats(ctx context.Context, userID uuid.UUID, timeRange string) (*out.MessageStats, error) {
	since := time.Now().AddDate(0, 0, -rangeDays(timeRange))
	stats, err := s.messageRepo.Stats(ctx, userID, since)
	if err != nil {
		return nil, apperr.DatabaseError("message stats", err)
	}
	return stats, nil
}

func (s *Service) Timeline(ctx context.Context, userID uuid.UUID, timeRange string) ([]*out.TimelineBucket, error) {
	since := time.Now().AddDate(0, 0, -rangeDays(timeRange))
	buckets, err := s.messageRepo.Timeline(ctx, userID, since)
	if err != nil {
		return nil, apperr.DatabaseError("message timeline", err)
	}
	return buckets, nil
}

// rangeDays maps the reporting ranges to day counts; anything else falls
// back to a week.
func rangeDays(timeRange string) int {
	switch timeRange {
	case "30d":
		return 30
	case "90d":
		return 90
	default:
		return 7
	}
}

// =============================================================================
// Draft
// =============================================================================

func (s *Service) Draft(ctx context.Context, userID uuid.UUID, messageID int64) (string, error) {
	if s.drafter == nil || !s.drafter.Enabled() {
		return "", apperr.Unsupported("reply drafting is not configured")
	}

	msg, err := s.messageRepo.GetByID(ctx, userID, messageID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return "", apperr.NotFound("message")
		}
		return "", apperr.DatabaseError("get message", err)
	}

	draft, err := s.drafter.DraftReply(ctx, msg)
	if err != nil {
		return "", apperr.ExternalError("drafter", err)
	}
	return draft, nil
}
