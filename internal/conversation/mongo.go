package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per owner in the chats collection, with the turns
// embedded in its messages array.
type MongoStore struct {
	client *mongo.Client
	chats  *mongo.Collection
}

const mongoCollection = "chats"

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if strings.TrimSpace(database) == "" {
		database = "repose-of-mind"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(strings.TrimSpace(uri)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	chats := client.Database(database).Collection(mongoCollection)
	_, err = chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_user"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo index: %w", err)
	}
	return &MongoStore{client: client, chats: chats}, nil
}

func (s *MongoStore) FindByOwner(ctx context.Context, ownerID string) (Conversation, error) {
	var conv Conversation
	err := s.chats.FindOne(ctx, bson.M{"userId": ownerID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("find chat: %w", err)
	}
	conv.Turns = nonNilTurns(conv.Turns)
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	for i := range conv.Turns {
		conv.Turns[i].Timestamp = conv.Turns[i].Timestamp.UTC()
	}
	return conv, nil
}

func (s *MongoStore) Insert(ctx context.Context, conv Conversation) error {
	conv.Turns = nonNilTurns(conv.Turns)
	_, err := s.chats.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConversationExists
	}
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (s *MongoStore) AppendTurn(ctx context.Context, ownerID string, turn Turn) error {
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"userId": ownerID},
		bson.M{
			"$push": bson.M{"messages": turn},
			"$set":  bson.M{"updatedAt": turn.Timestamp},
		},
	)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteByOwner(ctx context.Context, ownerID string) (bool, error) {
	res, err := s.chats.DeleteOne(ctx, bson.M{"userId": ownerID})
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
