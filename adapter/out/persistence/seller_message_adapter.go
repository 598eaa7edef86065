// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// Message Adapter (PostgreSQL)
// =============================================================================

// MessageAdapter implements out.MessageRepository using PostgreSQL.
type MessageAdapter struct {
	db *sqlx.DB
}

func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

var _ out.MessageRepository = (*MessageAdapter)(nil)

// =============================================================================
// Database Row Mapping
// =============================================================================

const messageSelectColumns = `
	m.id, m.user_id, m.external_id, m.thread_id,
	m.sender_username, m.recipient_username, m.sender_type, m.is_system,
	m.subject, m.message_text, m.item_id,
	m.category, m.sentiment, m.priority, m.status,
	m.response, m.response_time, m.escalated, m.auto_processed,
	m.source_timestamp, m.created_at, m.updated_at`

type messageRow struct {
	ID                int64          `db:"id"`
	UserID            uuid.UUID      `db:"user_id"`
	ExternalID        string         `db:"external_id"`
	ThreadID          sql.NullString `db:"thread_id"`
	SenderUsername    sql.NullString `db:"sender_username"`
	RecipientUsername sql.NullString `db:"recipient_username"`
	SenderType        string         `db:"sender_type"`
	IsSystem          bool           `db:"is_system"`
	Subject           string         `db:"subject"`
	MessageText       string         `db:"message_text"`
	ItemID            sql.NullString `db:"item_id"`
	Category          string         `db:"category"`
	Sentiment         string         `db:"sentiment"`
	Priority          string         `db:"priority"`
	Status            string         `db:"status"`
	Response          sql.NullString `db:"response"`
	ResponseTime      sql.NullTime   `db:"response_time"`
	Escalated         bool           `db:"escalated"`
	AutoProcessed     bool           `db:"auto_processed"`
	SourceTimestamp   time.Time      `db:"source_timestamp"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// messageRowWithCount carries the COUNT(*) OVER() window result so listing
// needs a single query.
type messageRowWithCount struct {
	messageRow
	TotalCount int `db:"total_count"`
}

func (r *messageRow) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:              r.ID,
		UserID:          r.UserID,
		ExternalID:      r.ExternalID,
		SenderType:      domain.ParseSenderType(r.SenderType),
		IsSystem:        r.IsSystem,
		Subject:         r.Subject,
		MessageText:     r.MessageText,
		Category:        domain.Category(r.Category),
		Sentiment:       domain.Sentiment(r.Sentiment),
		Priority:        domain.Priority(r.Priority),
		Status:          domain.Status(r.Status),
		Escalated:       r.Escalated,
		AutoProcessed:   r.AutoProcessed,
		SourceTimestamp: r.SourceTimestamp,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ThreadID.Valid {
		msg.ThreadID = &r.ThreadID.String
	}
	if r.SenderUsername.Valid {
		msg.SenderUsername = &r.SenderUsername.String
	}
	if r.RecipientUsername.Valid {
		msg.RecipientUsername = &r.RecipientUsername.String
	}
	if r.ItemID.Valid {
		msg.ItemID = &r.ItemID.String
	}
	if r.Response.Valid {
		msg.Response = &r.Response.String
	}
	if r.ResponseTime.Valid {
		msg.ResponseTime = &r.ResponseTime.Time
	}
	return msg
}

// =============================================================================
// CRUD Operations
// =============================================================================

// Create inserts a new message. The (user_id, external_id) unique
// constraint makes this the authoritative dedup point.
func (a *MessageAdapter) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (
			user_id, external_id, thread_id,
			sender_username, recipient_username, sender_type, is_system,
			subject, message_text, item_id,
			category, sentiment, priority, status,
			escalated, auto_processed, source_timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17
		)
		RETURNING id, created_at, updated_at`

	err := a.db.QueryRowxContext(ctx, query,
		msg.UserID, msg.ExternalID, msg.ThreadID,
		msg.SenderUsername, msg.RecipientUsername, string(msg.SenderType), msg.IsSystem,
		msg.Subject, msg.MessageText, msg.ItemID,
		string(msg.Category), string(msg.Sentiment), string(msg.Priority), string(msg.Status),
		msg.Escalated, msg.AutoProcessed, msg.SourceTimestamp,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)

	if isUniqueViolation(err) {
		return out.ErrDuplicate
	}
	return err
}

func (a *MessageAdapter) ExistsByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (bool, error) {
	var exists bool
	err := a.db.QueryRowxContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE user_id = $1 AND external_id = $2)`,
		userID, externalID,
	).Scan(&exists)
	return exists, err
}

func (a *MessageAdapter) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM messages m WHERE m.user_id = $1 AND m.id = $2`, messageSelectColumns)

	var row messageRow
	if err := a.db.QueryRowxContext(ctx, query, userID, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (a *MessageAdapter) RecordResponse(ctx context.Context, id int64, response string, status domain.Status, autoProcessed bool) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE messages SET
			response = $1,
			response_time = NOW(),
			status = $2,
			auto_processed = $3,
			updated_at = NOW()
		WHERE id = $4`,
		response, string(status), autoProcessed, id,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return out.ErrNotFound
	}
	return nil
}

// Escalate flips the sticky escalated flag without touching the status.
func (a *MessageAdapter) Escalate(ctx context.Context, id int64) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE messages SET escalated = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return out.ErrNotFound
	}
	return nil
}

// =============================================================================
// Listing
// =============================================================================

func (a *MessageAdapter) List(ctx context.Context, userID uuid.UUID, filter *out.ListFilter) ([]*domain.Message, int, error) {
	if filter == nil {
		filter = &out.ListFilter{Limit: 20}
	}

	where, args := buildMessageFilter(userID, filter)
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM messages m
		WHERE %s
		ORDER BY m.created_at DESC
		LIMIT $%d OFFSET $%d`,
		messageSelectColumns, where, len(args)-1, len(args))

	var rows []messageRowWithCount
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	messages := make([]*domain.Message, 0, len(rows))
	total := 0
	for i := range rows {
		messages = append(messages, rows[i].toDomain())
		total = rows[i].TotalCount
	}

	// An empty page past the end still needs the real total.
	if len(rows) == 0 && filter.Offset > 0 {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM messages m WHERE %s`, where)
		if err := a.db.QueryRowxContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	return messages, total, nil
}

// buildMessageFilter translates a ListFilter into a WHERE clause. The
// virtual statuses map to their real predicates here.
func buildMessageFilter(userID uuid.UUID, filter *out.ListFilter) (string, []any) {
	conditions := []string{"m.user_id = $1"}
	args := []any{userID}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Status {
	case "", "all":
		// no status filter
	case "responded":
		conditions = append(conditions, "m.status IN ('auto_responded', 'manually_responded')")
	case "escalated":
		conditions = append(conditions, "m.escalated = TRUE")
	case "high_priority":
		conditions = append(conditions, "m.priority = 'high'")
	default:
		conditions = append(conditions, "m.status = "+arg(filter.Status))
	}

	if filter.Category != "" && filter.Category != "all" {
		conditions = append(conditions, "m.category = "+arg(filter.Category))
	}

	switch filter.Source {
	case "ebay", "ebay-system":
		conditions = append(conditions, "m.is_system = TRUE")
	case "customers":
		conditions = append(conditions, "m.is_system = FALSE AND m.sender_type = 'buyer'")
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(m.sender_username ILIKE %s OR m.subject ILIKE %s OR m.message_text ILIKE %s)", p, p, p))
	}

	return strings.Join(conditions, " AND "), args
}

// =============================================================================
// Reporting
// =============================================================================

func (a *MessageAdapter) Stats(ctx context.Context, userID uuid.UUID, since time.Time) (*out.MessageStats, error) {
	stats := &out.MessageStats{
		ByStatus:   make(map[string]int),
		ByCategory: make(map[string]int),
		ByPriority: make(map[string]int),
	}

	summary := struct {
		Total         int             `db:"total"`
		Escalated     int             `db:"escalated"`
		AutoResponded int             `db:"auto_responded"`
		AvgMinutes    sql.NullFloat64 `db:"avg_minutes"`
	}{}

	err := a.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE escalated) AS escalated,
			COUNT(*) FILTER (WHERE status = 'auto_responded') AS auto_responded,
			AVG(EXTRACT(EPOCH FROM (response_time - created_at)) / 60.0)
				FILTER (WHERE response_time IS NOT NULL) AS avg_minutes
		FROM messages
		WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).StructScan(&summary)
	if err != nil {
		return nil, err
	}

	stats.Total = summary.Total
	stats.Escalated = summary.Escalated
	stats.AutoResponded = summary.AutoResponded
	if summary.AvgMinutes.Valid {
		stats.AvgResponseMinutes = summary.AvgMinutes.Float64
	}

	grouped := []struct {
		Status   string `db:"status"`
		Category string `db:"category"`
		Priority string `db:"priority"`
		Count    int    `db:"count"`
	}{}
	err = a.db.SelectContext(ctx, &grouped, `
		SELECT status, category, priority, COUNT(*) AS count
		FROM messages
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY status, category, priority`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}

	for _, g := range grouped {
		stats.ByStatus[g.Status] += g.Count
		stats.ByCategory[g.Category] += g.Count
		stats.ByPriority[g.Priority] += g.Count
	}

	return stats, nil
}

// Timeline groups messages per day. Missing days are filled with zero
// buckets so charts always span the full range.
func (a *MessageAdapter) Timeline(ctx context.Context, userID uuid.UUID, since time.Time) ([]*out.TimelineBucket, error) {
	rows := []struct {
		Date      string `db:"date"`
		Messages  int    `db:"messages"`
		Responses int    `db:"responses"`
	}{}

	err := a.db.SelectContext(ctx, &rows, `
		SELECT
			TO_CHAR(created_at, 'YYYY-MM-DD') AS date,
			COUNT(*) AS messages,
			COUNT(*) FILTER (WHERE status <> 'pending') AS responses
		FROM messages
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY 1
		ORDER BY 1`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*out.TimelineBucket, len(rows))
	for i := range rows {
		byDate[rows[i].Date] = &out.TimelineBucket{
			Date:      rows[i].Date,
			Messages:  rows[i].Messages,
			Responses: rows[i].Responses,
		}
	}

	var buckets []*out.TimelineBucket
	for day := since.Truncate(24 * time.Hour); !day.After(time.Now()); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if b, ok := byDate[key]; ok {
			buckets = append(buckets, b)
		} else {
			buckets = append(buckets, &out.TimelineBucket{Date: key})
		}
	}
	return buckets, nil
}

func (a *MessageAdapter) CountAutoResponsesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := a.db.QueryRowxContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE user_id = $1 AND auto_processed = TRUE AND response_time >= $2`,
		userID, since,
	).Scan(&count)
	return count, err
}

// =============================================================================
// Error helpers
// =============================================================================

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
