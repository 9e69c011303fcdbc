package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, ns []notification.Notification) ([]notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]notification.Notification, 0, len(ns))
	for _, n := range ns {
		n := n
		n.ID = newID()
		repo.db.notifications[n.ID] = &n
		created = append(created, n)
	}
	return created, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if filter.Match(*n) {
			ns = append(ns, *n)
		}
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].CreatedAt.After(ns[j].CreatedAt) })
	return ns, nil
}

func (repo *notificationRepository) UpdateNotifications(_ context.Context, userID string, ids []string, read, deleted bool) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var count int
	for _, n := range repo.db.notifications {
		if n.UserID != userID || n.IsDeleted || (len(ids) > 0 && !contains(ids, n.ID)) {
			continue
		}
		if read {
			n.IsRead = true
		}
		if deleted {
			n.IsDeleted = true
		}
		count++
	}
	return count, nil
}
