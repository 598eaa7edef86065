package out

import (
	"context"
	"errors"
	"time"

	"seller_server/core/domain"

	"github.com/google/uuid"
)

// Sentinel errors shared by repository implementations.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits the (user_id, external_id)
	// uniqueness constraint. The pipeline treats it as "already exists".
	ErrDuplicate = errors.New("duplicate entry")
)

// =============================================================================
// Message Repository
// =============================================================================

// ListFilter narrows a message listing. Zero values mean "no filter".
// Status accepts the lifecycle states plus the virtual filters "responded"
// (either responded state), "escalated" (escalated flag regardless of
// status) and "high_priority" (priority = high).
type ListFilter struct {
	Status   string
	Category string
	Search   string
	Source   string // "ebay" or "ebay-system" | "customers"
	Limit    int
	Offset   int
}

// MessageStats aggregates counts for the reporting endpoint.
type MessageStats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByCategory         map[string]int `json:"by_category"`
	ByPriority         map[string]int `json:"by_priority"`
	Escalated          int            `json:"escalated"`
	AutoResponded      int            `json:"auto_responded"`
	AvgResponseMinutes float64        `json:"avg_response_minutes"`
}

// MessageRepository persists messages.
type MessageRepository interface {
	// Create inserts a new message and fills ID/CreatedAt/UpdatedAt.
	// Returns ErrDuplicate when (user_id, external_id) already exists.
	Create(ctx context.Context, msg *domain.Message) error

	// ExistsByExternalID is the cheap pre-insert dedup check. The unique
	// constraint remains the authoritative signal under concurrent runs.
	ExistsByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (bool, error)

	// GetByID returns one message scoped to the owning user.
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Message, error)

	// RecordResponse sets response text, response time and the new status.
	// autoProcessed marks responses generated by the auto-responder.
	RecordResponse(ctx context.Context, id int64, response string, status domain.Status, autoProcessed bool) error

	// Escalate sets the sticky escalated flag, leaving status unchanged.
	Escalate(ctx context.Context, id int64) error

	// List returns a filtered page of messages, newest first, plus the total
	// match count.
	List(ctx context.Context, userID uuid.UUID, filter *ListFilter) ([]*domain.Message, int, error)

	// Stats aggregates counts for messages created since the given time.
	Stats(ctx context.Context, userID uuid.UUID, since time.Time) (*MessageStats, error)

	// CountAutoResponsesSince counts auto-processed responses sent since the
	// given time, for the daily response cap.
	CountAutoResponsesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// Timeline returns one bucket per day since the given time, oldest
	// first. Days without messages still get a zero bucket.
	Timeline(ctx context.Context, userID uuid.UUID, since time.Time) ([]*TimelineBucket, error)
}

// TimelineBucket is one day of chart data.
type TimelineBucket struct {
	Date      string `json:"date" db:"date"`
	Messages  int    `json:"messages" db:"messages"`
	Responses int    `json:"responses" db:"responses"`
}

// =============================================================================
// User Repository
// =============================================================================

// UserRepository reads seller accounts and persists credential rotation.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// ListActiveWithCredentials returns active users that have a stored
	// access token, for the periodic poll worker.
	ListActiveWithCredentials(ctx context.Context) ([]*domain.User, error)

	// UpdateTokens persists a refreshed access token (and refresh token when
	// the marketplace rotated it) before the fetch retry.
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string) error

	// UpdateSettings replaces the user's auto-response settings.
	UpdateSettings(ctx context.Context, id uuid.UUID, settings *domain.AutoResponseSettings) error
}

// =============================================================================
// Raw Payload Store
// =============================================================================

// RawPayloadStore archives original marketplace payloads for audits. Writes
// are best-effort: an archive failure never fails ingestion.
type RawPayloadStore interface {
	Archive(ctx context.Context, userID uuid.UUID, externalID string, messageType string, payload []byte) error
	Fetch(ctx context.Context, userID uuid.UUID, externalID string) ([]byte, error)
}

// =============================================================================
// Reply Drafter
// =============================================================================

// ReplyDrafter produces a suggested human reply for a stored message. The
// suggestion is never sent automatically.
type ReplyDrafter interface {
	DraftReply(ctx context.Context, msg *domain.Message) (string, error)
	Enabled() bool
}
