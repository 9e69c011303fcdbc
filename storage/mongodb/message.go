package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/mwalimu/core/message"
)

type messageRepository struct {
	messages *mongo.Collection
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{messages: db.collection(messagesCollection)}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	m.ID = newID()
	if _, err := repo.messages.InsertOne(ctx, m); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo *messageRepository) find(ctx context.Context, query bson.M, sort int) ([]message.Message, error) {
	cursor, err := repo.messages.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: sort}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.Message, 0)
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decoding messages")
	}
	return msgs, nil
}

func (repo *messageRepository) QueryConversation(ctx context.Context, userID, otherID string) ([]message.Message, error) {
	return repo.find(ctx, bson.M{"$or": bson.A{
		bson.M{"senderId": userID, "recipientId": otherID},
		bson.M{"senderId": otherID, "recipientId": userID},
	}}, 1)
}

func (repo *messageRepository) QueryUserMessages(ctx context.Context, userID string) ([]message.Message, error) {
	return repo.find(ctx, bson.M{"$or": bson.A{
		bson.M{"senderId": userID},
		bson.M{"recipientId": userID},
	}}, -1)
}

func (repo *messageRepository) MarkRead(ctx context.Context, recipientID, senderID string, at time.Time) (int, error) {
	res, err := repo.messages.UpdateMany(ctx,
		bson.M{"recipientId": recipientID, "senderId": senderID, "readAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"readAt": at}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "marking messages read")
	}
	return int(res.ModifiedCount), nil
}
