package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a seller account. Credentials and auto-response settings live on
// the user row; the pipeline treats them as an immutable snapshot for the
// duration of one ingestion run.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`

	Credentials *MarketplaceCredentials `json:"-"`
	Settings    AutoResponseSettings    `json:"settings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BusinessHours is the daily window during which auto-response may fire.
// Times are "HH:MM"; only the hour component is compared (the window is
// inclusive at both ends at hour granularity).
type BusinessHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ResponseTemplates maps a category to its canned response text. Lookup
// falls back to the general template when a category has none.
type ResponseTemplates map[Category]string

// ForCategory returns the template for a category, falling back to general.
// A user with no templates at all still gets the stock general response.
func (t ResponseTemplates) ForCategory(c Category) string {
	if tpl, ok := t[c]; ok && tpl != "" {
		return tpl
	}
	if tpl, ok := t[CategoryGeneral]; ok && tpl != "" {
		return tpl
	}
	return DefaultAutoResponseSettings().Templates[CategoryGeneral]
}

// AutoResponseSettings is the per-user auto-response configuration.
type AutoResponseSettings struct {
	Enabled            bool              `json:"enabled"`
	ResponseDelay      int               `json:"response_delay"` // seconds
	BusinessHours      BusinessHours     `json:"business_hours"`
	WeekdaysOnly       bool              `json:"weekdays_only"`
	MaxDailyResponses  int               `json:"max_daily_responses"`
	EscalationKeywords []string          `json:"escalation_keywords"`
	Templates          ResponseTemplates `json:"templates"`
}

// DefaultAutoResponseSettings returns the settings a new user starts with.
func DefaultAutoResponseSettings() AutoResponseSettings {
	return AutoResponseSettings{
		Enabled:           true,
		ResponseDelay:     300,
		BusinessHours:     BusinessHours{Start: "09:00", End: "17:00"},
		WeekdaysOnly:      true,
		MaxDailyResponses: 100,
		EscalationKeywords: []string{
			"complaint", "angry", "disappointed", "lawsuit",
			"attorney", "dispute", "scam", "fraud",
		},
		Templates: ResponseTemplates{
			CategoryShipping:  "Your item will ship within 1-2 business days via the method selected at checkout. You'll receive tracking information once processed.",
			CategoryReturns:   "We accept returns within 30 days. Items must be in original condition. Please message us with your order number to start the return process.",
			CategoryPayment:   "Payment issues are usually resolved within 24 hours. Please check your PayPal account or contact your payment provider.",
			CategoryTechnical: "For technical issues, please provide your item number and detailed description. We'll help resolve this quickly.",
			CategoryWarranty:  "This item comes with our standard warranty. Please provide your order details and we'll review your warranty claim.",
			CategoryGreeting:  "Thank you for your message! We appreciate your business and will respond promptly during business hours.",
			CategoryGeneral:   "Thank you for contacting us. We've received your message and will respond within 24 hours during business days.",
		},
	}
}
