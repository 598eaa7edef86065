package domain

import (
	"time"

	"github.com/google/uuid"
)

// SenderType identifies who originated a marketplace message.
type SenderType string

const (
	SenderBuyer   SenderType = "buyer"
	SenderSystem  SenderType = "marketplace-system"
	SenderSeller  SenderType = "seller"
	SenderUnknown SenderType = "unknown"
)

// ParseSenderType converts a string to SenderType, defaulting to unknown.
func ParseSenderType(s string) SenderType {
	switch SenderType(s) {
	case SenderBuyer, SenderSystem, SenderSeller:
		return SenderType(s)
	default:
		return SenderUnknown
	}
}

// Category is the classified topic of a message. Exactly one value per
// message, decided by a first-matching-pattern rule.
type Category string

const (
	CategoryShipping  Category = "shipping"
	CategoryReturns   Category = "returns"
	CategoryPayment   Category = "payment"
	CategoryTechnical Category = "technical"
	CategoryWarranty  Category = "warranty"
	CategoryGreeting  Category = "greeting"
	CategoryComplaint Category = "complaint"
	CategoryGeneral   Category = "general"
)

// Categories lists all valid categories.
var Categories = []Category{
	CategoryShipping, CategoryReturns, CategoryPayment, CategoryTechnical,
	CategoryWarranty, CategoryGreeting, CategoryComplaint, CategoryGeneral,
}

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Sentiment is the lexicon-derived tone of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Priority is the handling priority of a message.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is the lifecycle state of a message.
//
//	pending -> auto_responded | manually_responded | closed
//
// The escalated flag is orthogonal: settable from any state, never cleared
// automatically.
type Status string

const (
	StatusPending           Status = "pending"
	StatusAutoResponded     Status = "auto_responded"
	StatusManuallyResponded Status = "manually_responded"
	StatusClosed            Status = "closed"
)

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusAutoResponded, StatusManuallyResponded, StatusClosed:
		return true
	}
	return false
}

// Message is one marketplace message stored for one user. (userID,
// externalID) is unique; re-ingesting the same externalID is a no-op.
type Message struct {
	ID                int64      `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	ExternalID        string     `json:"external_id"`
	ThreadID          *string    `json:"thread_id,omitempty"`
	SenderUsername    *string    `json:"sender_username,omitempty"`
	RecipientUsername *string    `json:"recipient_username,omitempty"`
	SenderType        SenderType `json:"sender_type"`
	IsSystem          bool       `json:"is_system"`
	Subject           string     `json:"subject"`
	MessageText       string     `json:"message_text"`
	ItemID            *string    `json:"item_id,omitempty"`

	Category  Category  `json:"category"`
	Sentiment Sentiment `json:"sentiment"`
	Priority  Priority  `json:"priority"`

	Status        Status     `json:"status"`
	Response      *string    `json:"response,omitempty"`
	ResponseTime  *time.Time `json:"response_time,omitempty"`
	Escalated     bool       `json:"escalated"`
	AutoProcessed bool       `json:"auto_processed"`

	// SourceTimestamp is the marketplace's own creation time, distinct from
	// local ingestion time (CreatedAt).
	SourceTimestamp time.Time `json:"source_timestamp"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Repliable reports whether a reply can be sent to this message at all.
// System messages and non-buyer senders cannot receive replies; a reply also
// needs the listing reference and the buyer's username.
func (m *Message) Repliable() bool {
	if m.IsSystem || m.SenderType != SenderBuyer {
		return false
	}
	return m.ItemID != nil && *m.ItemID != "" && m.SenderUsername != nil && *m.SenderUsername != ""
}

// ClassifiableText returns the text the classifier should look at: the body,
// falling back to the subject when the body is empty.
func (m *Message) ClassifiableText() string {
	if m.MessageText != "" {
		return m.MessageText
	}
	return m.Subject
}

// DefaultSubject is used when the marketplace provides no subject.
const DefaultSubject = "No Subject"
