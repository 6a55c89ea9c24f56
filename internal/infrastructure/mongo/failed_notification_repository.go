package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wellnest/survey-api/internal/infrastructure/messenger"
)

// FailedNotificationRepository は配信に失敗した通知を failed_notifications に退避する。
// 再送は別プロセスが status=pending を拾って行う。
type FailedNotificationRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewFailedNotificationRepository(db *mongo.Database, collectionName string) *FailedNotificationRepository {
	return &FailedNotificationRepository{
		collection: db.Collection(collectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *FailedNotificationRepository) Record(ctx context.Context, failure messenger.FailedDelivery) error {
	now := r.now()
	doc := newFailedNotificationDocument(failure, now)
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

func newFailedNotificationDocument(failure messenger.FailedDelivery, now time.Time) FailedNotificationDocument {
	attempts := failure.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return FailedNotificationDocument{
		Target:      failure.Target,
		Destination: failure.Destination,
		UserID:      failure.UserID,
		Text:        failure.Text,
		Payload:     failure.Payload,
		Error:       failure.Error,
		Attempts:    attempts,
		Status:      "pending",
		CreatedAt:   now,
		LastTriedAt: now,
	}
}
