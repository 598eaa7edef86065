// Package in defines inbound ports (driving ports) for the application.
package in

import (
	"context"

	"seller_server/core/domain"
	"seller_server/core/port/out"

	"github.com/google/uuid"
)

// SyncResult is the outcome of one ingestion run for one user.
type SyncResult struct {
	NewMessages    int  `json:"newMessages"`
	TotalPulled    int  `json:"totalPulled"`
	TokenRefreshed bool `json:"tokenRefreshed,omitempty"`
}

// ListQuery is the HTTP-facing message listing query.
type ListQuery struct {
	Page     int
	Limit    int
	Status   string
	Category string
	Search   string
	Source   string
}

// ListResult is a page of messages with pagination totals.
type ListResult struct {
	Messages      []*domain.Message `json:"messages"`
	CurrentPage   int               `json:"currentPage"`
	TotalPages    int               `json:"totalPages"`
	TotalMessages int               `json:"totalMessages"`
}

// MessageService is the inbound port for message operations.
type MessageService interface {
	// Sync runs the ingestion pipeline for one user: fetch, dedupe,
	// classify, persist, and schedule eligible auto-responses.
	Sync(ctx context.Context, userID uuid.UUID) (*SyncResult, error)

	// List returns a filtered page of the user's messages.
	List(ctx context.Context, userID uuid.UUID, q *ListQuery) (*ListResult, error)

	// Respond sends a manual reply and transitions the message to
	// manually_responded.
	Respond(ctx context.Context, userID uuid.UUID, messageID int64, responseText string) (*domain.Message, error)

	// Stats aggregates counts over the given trailing range ("7d", "30d",
	// "90d").
	Stats(ctx context.Context, userID uuid.UUID, timeRange string) (*out.MessageStats, error)

	// Timeline returns per-day message and response counts for charts.
	Timeline(ctx context.Context, userID uuid.UUID, timeRange string) ([]*out.TimelineBucket, error)

	// Draft produces a suggested reply for a stored message without
	// sending anything.
	Draft(ctx context.Context, userID uuid.UUID, messageID int64) (string, error)
}
