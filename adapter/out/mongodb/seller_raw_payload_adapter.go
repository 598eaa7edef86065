// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"seller_server/core/port/out"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Raw Payload Adapter
// =============================================================================

const (
	collectionRawPayloads = "raw_messages"

	// Compression threshold - only compress if payload is larger than this
	compressionThreshold = 1024 // 1KB

	defaultRetentionDays = 90
)

// RawPayloadAdapter archives original marketplace payloads in MongoDB.
// Documents expire after the retention window via a TTL index.
type RawPayloadAdapter struct {
	db            *mongo.Database
	collection    *mongo.Collection
	retentionDays int
}

// NewRawPayloadAdapter creates a new MongoDB raw payload adapter.
// retentionDays <= 0 selects the default retention window.
func NewRawPayloadAdapter(db *mongo.Database, retentionDays int) *RawPayloadAdapter {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &RawPayloadAdapter{
		db:            db,
		collection:    db.Collection(collectionRawPayloads),
		retentionDays: retentionDays,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *RawPayloadAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

// rawPayloadDocument represents the MongoDB document structure.
type rawPayloadDocument struct {
	UserID      string `bson:"user_id"`
	ExternalID  string `bson:"external_id"`
	MessageType string `bson:"message_type"`

	// Payload (potentially compressed)
	Payload      []byte `bson:"payload"`
	IsCompressed bool   `bson:"is_compressed"`
	OriginalSize int64  `bson:"original_size"`

	ArchivedAt time.Time `bson:"archived_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// =============================================================================
// Operations
// =============================================================================

// Archive stores the original payload for a message. Re-archiving the same
// message replaces the previous document.
func (a *RawPayloadAdapter) Archive(ctx context.Context, userID uuid.UUID, externalID string, messageType string, payload []byte) error {
	now := time.Now()
	doc := rawPayloadDocument{
		UserID:       userID.String(),
		ExternalID:   externalID,
		MessageType:  messageType,
		Payload:      payload,
		OriginalSize: int64(len(payload)),
		ArchivedAt:   now,
		ExpiresAt:    now.AddDate(0, 0, a.retentionDays),
	}

	if len(payload) > compressionThreshold {
		compressed, err := compress(payload)
		if err != nil {
			return fmt.Errorf("failed to compress payload: %w", err)
		}
		doc.Payload = compressed
		doc.IsCompressed = true
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"user_id": doc.UserID, "external_id": externalID}

	_, err := a.collection.ReplaceOne(ctx, filter, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to archive payload: %w", err)
	}
	return nil
}

// Fetch returns the archived payload, or out.ErrNotFound when the document
// is missing or already expired.
func (a *RawPayloadAdapter) Fetch(ctx context.Context, userID uuid.UUID, externalID string) ([]byte, error) {
	var doc rawPayloadDocument
	filter := bson.M{"user_id": userID.String(), "external_id": externalID}

	err := a.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, out.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payload: %w", err)
	}

	if doc.IsCompressed {
		return decompress(doc.Payload)
	}
	return doc.Payload, nil
}

// DeleteOlderThan removes archived payloads older than the given time. The
// TTL index handles routine expiry; this exists for manual cleanup.
func (a *RawPayloadAdapter) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	filter := bson.M{"archived_at": bson.M{"$lt": before}}

	result, err := a.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old payloads: %w", err)
	}
	return result.DeletedCount, nil
}

// =============================================================================
// Compression Helpers
// =============================================================================

func compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.RawPayloadStore = (*RawPayloadAdapter)(nil)
