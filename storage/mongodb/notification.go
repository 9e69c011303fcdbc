package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/mwalimu/core/notification"
)

type notificationRepository struct {
	notifications *mongo.Collection
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{notifications: db.collection(notificationsCollection)}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, ns []notification.Notification) ([]notification.Notification, error) {
	if len(ns) == 0 {
		return []notification.Notification{}, nil
	}
	docs := make([]interface{}, 0, len(ns))
	for i := range ns {
		ns[i].ID = newID()
		docs = append(docs, ns[i])
	}
	if _, err := repo.notifications.InsertMany(ctx, docs); err != nil {
		return nil, errors.Wrap(err, "inserting notifications")
	}
	return ns, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	query := bson.M{"userId": filter.UserID, "isDeleted": false}
	if filter.UnreadOnly {
		query["isRead"] = false
	}
	cursor, err := repo.notifications.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	ns := make([]notification.Notification, 0)
	if err = cursor.All(ctx, &ns); err != nil {
		return nil, errors.Wrap(err, "decoding notifications")
	}
	return ns, nil
}

func (repo *notificationRepository) UpdateNotifications(ctx context.Context, userID string, ids []string, read, deleted bool) (int, error) {
	query := bson.M{"userId": userID, "isDeleted": false}
	if len(ids) > 0 {
		query["_id"] = bson.M{"$in": ids}
	}
	set := bson.M{}
	if read {
		set["isRead"] = true
	}
	if deleted {
		set["isDeleted"] = true
	}
	res, err := repo.notifications.UpdateMany(ctx, query, bson.M{"$set": set})
	if err != nil {
		return 0, errors.Wrap(err, "updating notifications")
	}
	return int(res.MatchedCount), nil
}
