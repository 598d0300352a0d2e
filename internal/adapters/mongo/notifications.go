package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/plan-it/planit/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationStore struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewNotificationStore(db *mongo.Database, logger observability.Logger) *NotificationStore {
	return &NotificationStore{
		coll:   db.Collection("notifications"),
		logger: logger,
	}
}

type NotificationDoc struct {
	ID        uuid.UUID `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Message   string    `bson:"message"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

func (s *NotificationStore) Add(ctx context.Context, userID, message string) error {
	doc := NotificationDoc{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		s.logger.Error("failed to insert notification", err)
		return err
	}
	return nil
}

func (s *NotificationStore) ListForUser(ctx context.Context, userID string) ([]NotificationDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		s.logger.Error("failed to list notifications", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []NotificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.coll.UpdateMany(
		ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		s.logger.Error("failed to mark notifications read", err)
		return err
	}
	return nil
}
