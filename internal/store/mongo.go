package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoConnection(uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDB{
		Client: client,
		DB:     client.Database(database),
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// MongoMessageStore reads message pages from the messages collection.
type MongoMessageStore struct {
	collection *mongo.Collection
}

func NewMongoMessageStore(db *MongoDB) *MongoMessageStore {
	return &MongoMessageStore{collection: db.DB.Collection("messages")}
}

func (s *MongoMessageStore) Fetch(ctx context.Context, conversationID string, page, limit int64) ([]Message, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	filter := bson.M{"conversationId": conversationID}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit + 1) // one extra row to detect a further page

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, false, fmt.Errorf("failed to decode messages: %w", err)
	}

	hasMore := int64(len(messages)) > limit
	if hasMore {
		messages = messages[:limit]
	}
	return messages, hasMore, nil
}

// MongoNotificationStore forwards notification-state mutations to the
// notifications collection.
type MongoNotificationStore struct {
	collection *mongo.Collection
}

func NewMongoNotificationStore(db *MongoDB) *MongoNotificationStore {
	return &MongoNotificationStore{collection: db.DB.Collection("notifications")}
}

func (s *MongoNotificationStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"userId": userID, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *MongoNotificationStore) MarkRead(ctx context.Context, userID, notificationID string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": notificationID, "userId": userID},
		bson.M{"$set": bson.M{"isRead": true, "readAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *MongoNotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.collection.UpdateMany(ctx,
		bson.M{"userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func (s *MongoNotificationStore) Delete(ctx context.Context, userID, notificationID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": notificationID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
