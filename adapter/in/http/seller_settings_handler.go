package http

import (
	"seller_server/core/domain"
	"seller_server/core/port/out"
	"seller_server/pkg/apperr"
	"seller_server/pkg/logger"
	"seller_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler handles auto-response settings requests.
type SettingsHandler struct {
	userRepo out.UserRepository
}

func NewSettingsHandler(userRepo out.UserRepository) *SettingsHandler {
	return &SettingsHandler{userRepo: userRepo}
}

// Register registers settings routes.
func (h *SettingsHandler) Register(router fiber.Router) {
	settings := router.Group("/settings")

	settings.Get("/", h.Get)
	settings.Put("/", h.Update)
	settings.Patch("/", h.Update)
}

// Get returns the user's current auto-response settings.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return err
	}

	return response.OK(c, user.Settings)
}

// UpdateSettingsRequest is a partial settings update. Nil fields keep their
// stored value, so PATCH and PUT share one handler.
type UpdateSettingsRequest struct {
	Enabled            *bool                     `json:"enabled"`
	ResponseDelay      *int                      `json:"response_delay"`
	BusinessHours      *domain.BusinessHours     `json:"business_hours"`
	WeekdaysOnly       *bool                     `json:"weekdays_only"`
	MaxDailyResponses  *int                      `json:"max_daily_responses"`
	EscalationKeywords *[]string                 `json:"escalation_keywords"`
	Templates          *domain.ResponseTemplates `json:"templates"`
}

// Update merges the request into the stored settings and persists the result.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return err
	}

	settings := user.Settings
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.ResponseDelay != nil {
		if *req.ResponseDelay < 0 {
			return apperr.InvalidInput("response_delay", "must not be negative")
		}
		settings.ResponseDelay = *req.ResponseDelay
	}
	if req.BusinessHours != nil {
		if !validHourMinute(req.BusinessHours.Start) || !validHourMinute(req.BusinessHours.End) {
			return apperr.InvalidInput("business_hours", "times must be formatted HH:MM")
		}
		settings.BusinessHours = *req.BusinessHours
	}
	if req.WeekdaysOnly != nil {
		settings.WeekdaysOnly = *req.WeekdaysOnly
	}
	if req.MaxDailyResponses != nil {
		if *req.MaxDailyResponses < 0 {
			return apperr.InvalidInput("max_daily_responses", "must not be negative")
		}
		settings.MaxDailyResponses = *req.MaxDailyResponses
	}
	if req.EscalationKeywords != nil {
		settings.EscalationKeywords = *req.EscalationKeywords
	}
	if req.Templates != nil {
		settings.Templates = *req.Templates
	}

	if err := h.userRepo.UpdateSettings(c.Context(), userID, &settings); err != nil {
		return err
	}

	logger.Info("[SettingsHandler.Update] user %s updated auto-response settings", userID)

	return response.OK(c, settings)
}

// validHourMinute accepts "HH:MM" with a 24-hour clock.
func validHourMinute(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	for _, ch := range []byte{s[0], s[1], s[3], s[4]} {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return h < 24 && m < 60
}
