package http

import (
	"fmt"
	"strings"
	"time"

	"seller_server/core/port/in"
	"seller_server/core/port/out"
	"seller_server/pkg/cache"
	"seller_server/pkg/logger"
	"seller_server/pkg/ratelimit"
	"seller_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	statsCacheKey    = "stats:%s:%s"    // user id, range
	timelineCacheKey = "timeline:%s:%s" // user id, range

	defaultStatsCacheTTL = time.Minute
)

// MessageHandler handles marketplace message requests.
type MessageHandler struct {
	service       in.MessageService
	debouncer     *ratelimit.Debouncer
	cache         *cache.RedisCache
	statsCacheTTL time.Duration
}

// NewMessageHandler creates a new message handler. debouncer and cache may
// be nil; the handler degrades to uncached, undebounced behavior.
func NewMessageHandler(service in.MessageService, debouncer *ratelimit.Debouncer, statsCache *cache.RedisCache, statsCacheTTL time.Duration) *MessageHandler {
	if statsCacheTTL <= 0 {
		statsCacheTTL = defaultStatsCacheTTL
	}
	return &MessageHandler{
		service:       service,
		debouncer:     debouncer,
		cache:         statsCache,
		statsCacheTTL: statsCacheTTL,
	}
}

// Register registers message routes.
func (h *MessageHandler) Register(router fiber.Router) {
	messages := router.Group("/messages")

	messages.Get("/sync", h.Sync)
	messages.Get("/stats", h.Stats)
	messages.Get("/stats/timeline", h.Timeline)
	messages.Get("/", h.List)
	messages.Post("/:id/respond", h.Respond)
	messages.Post("/:id/draft", h.Draft)
}

// =============================================================================
// Sync
// =============================================================================

// Sync pulls new marketplace messages for the authenticated user. Repeated
// calls within the debounce window return the cached outcome shape without
// hitting the marketplace again.
func (h *MessageHandler) Sync(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	debounceKey := "sync:" + userID.String()
	if h.debouncer != nil {
		if h.debouncer.IsDuplicate(c.Context(), debounceKey) {
			return response.TooManyRequests(c, "sync already requested, try again shortly")
		}
		h.debouncer.Mark(c.Context(), debounceKey)
	}

	result, err := h.service.Sync(c.Context(), userID)
	if err != nil {
		// A failed run should not lock the user out for the whole window.
		if h.debouncer != nil {
			h.debouncer.Clear(c.Context(), debounceKey)
		}
		return err
	}

	if result.NewMessages > 0 {
		h.invalidateStatsCache(c, userID)
	}

	return response.OK(c, result)
}

// =============================================================================
// Listing
// =============================================================================

// List returns a filtered page of the user's messages.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	q := &in.ListQuery{
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Source:   c.Query("source"),
	}

	result, err := h.service.List(c.Context(), userID, q)
	if err != nil {
		return err
	}

	return response.OK(c, result)
}

// =============================================================================
// Respond
// =============================================================================

// RespondRequest is the manual reply body. The dashboard sends
// responseText; response is accepted as an alias.
type RespondRequest struct {
	ResponseText string `json:"responseText"`
	Response     string `json:"response"`
}

// Text returns the reply text, whichever key carried it.
func (r *RespondRequest) Text() string {
	if r.ResponseText != "" {
		return r.ResponseText
	}
	return r.Response
}

// Respond sends a manual reply to a buyer message.
func (h *MessageHandler) Respond(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	messageID, err := ParseMessageID(c)
	if err != nil {
		return err
	}

	var req RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	msg, err := h.service.Respond(c.Context(), userID, messageID, req.Text())
	if err != nil {
		return err
	}

	h.invalidateStatsCache(c, userID)

	return response.OK(c, msg)
}

// =============================================================================
// Draft
// =============================================================================

// DraftResponse carries a suggested reply. Nothing is sent.
type DraftResponse struct {
	Draft string `json:"draft"`
}

// Draft produces a suggested reply for a stored message.
func (h *MessageHandler) Draft(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	messageID, err := ParseMessageID(c)
	if err != nil {
		return err
	}

	draft, err := h.service.Draft(c.Context(), userID, messageID)
	if err != nil {
		return err
	}

	return response.OK(c, DraftResponse{Draft: draft})
}

// =============================================================================
// Reporting
// =============================================================================

// StatsResponse is the aggregate reporting payload.
type StatsResponse struct {
	*out.MessageStats
	ResponseRate float64 `json:"response_rate"`
	TimeRange    string  `json:"time_range"`
}

// Stats returns aggregate counts for the trailing range.
func (h *MessageHandler) Stats(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	timeRange := normalizeRange(c.Query("range", "7d"))
	cacheKey := fmt.Sprintf(statsCacheKey, userID, timeRange)

	if h.cache != nil {
		var cached StatsResponse
		if hit, _ := h.cache.GetJSON(c.Context(), cacheKey, &cached); hit {
			return response.OK(c, cached)
		}
	}

	stats, err := h.service.Stats(c.Context(), userID, timeRange)
	if err != nil {
		return err
	}

	resp := StatsResponse{
		MessageStats: stats,
		ResponseRate: responseRate(stats),
		TimeRange:    timeRange,
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(c.Context(), cacheKey, resp, h.statsCacheTTL); err != nil {
			logger.Debug("[MessageHandler.Stats] cache write failed: %v", err)
		}
	}

	return response.OK(c, resp)
}

// Timeline returns per-day message and response counts for charts.
func (h *MessageHandler) Timeline(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	timeRange := normalizeRange(c.Query("range", "7d"))
	cacheKey := fmt.Sprintf(timelineCacheKey, userID, timeRange)

	if h.cache != nil {
		var cached []*out.TimelineBucket
		if hit, _ := h.cache.GetJSON(c.Context(), cacheKey, &cached); hit {
			return response.OK(c, cached)
		}
	}

	buckets, err := h.service.Timeline(c.Context(), userID, timeRange)
	if err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(c.Context(), cacheKey, buckets, h.statsCacheTTL); err != nil {
			logger.Debug("[MessageHandler.Timeline] cache write failed: %v", err)
		}
	}

	return response.OK(c, buckets)
}

func (h *MessageHandler) invalidateStatsCache(c *fiber.Ctx, userID uuid.UUID) {
	if h.cache == nil {
		return
	}
	patterns := []string{
		fmt.Sprintf("stats:%s:*", userID),
		fmt.Sprintf("timeline:%s:*", userID),
	}
	for _, p := range patterns {
		if err := h.cache.DeletePattern(c.Context(), p); err != nil {
			logger.Debug("[MessageHandler] cache invalidation failed: %v", err)
		}
	}
}

// responseRate is the share of messages no longer pending a reply, in
// percent.
func responseRate(stats *out.MessageStats) float64 {
	if stats.Total == 0 {
		return 0
	}
	responded := stats.ByStatus["auto_responded"] + stats.ByStatus["manually_responded"]
	return float64(responded) / float64(stats.Total) * 100
}

func normalizeRange(r string) string {
	switch strings.ToLower(r) {
	case "30d":
		return "30d"
	case "90d":
		return "90d"
	default:
		return "7d"
	}
}
