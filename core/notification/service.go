package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

var ErrNotFound = core.NewNotFoundError("notification")

type (
	Repository interface {
		CreateNotifications(ctx context.Context, ns []Notification) ([]Notification, error)
		// QueryNotifications returns the notifications matching filter, newest first.
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		// UpdateNotifications sets isRead and/or isDeleted on the non-deleted notifications of userID.
		// An empty ids targets all of them.
		UpdateNotifications(ctx context.Context, userID string, ids []string, read, deleted bool) (int, error)
	}

	Service interface {
		// Notify stores one notification per user for notice.
		Notify(ctx context.Context, kind string, userIDs []string, notice core.Notice) ([]Notification, error)
		List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		MarkRead(ctx context.Context, userID, id string) error
		MarkAllRead(ctx context.Context, userID string) (int, error)
		// Delete hides a notification from its user.
		Delete(ctx context.Context, userID, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Notify(ctx context.Context, kind string, userIDs []string, notice core.Notice) ([]Notification, error) {
	userIDs = core.CleanStrings(userIDs)
	if len(userIDs) == 0 {
		return []Notification{}, nil
	}

	now := time.Now().UTC()
	ns := make([]Notification, 0, len(userIDs))
	for _, id := range userIDs {
		ns = append(ns, Notification{
			UserID:    id,
			Kind:      kind,
			Title:     notice.Title,
			Body:      notice.Body,
			Data:      notice.Data,
			CreatedAt: now,
		})
	}
	ns, err := svc.repo.CreateNotifications(ctx, ns)
	return ns, errors.Wrap(err, "creating notifications")
}

func (svc *service) List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, QueryFilter{UserID: userID, UnreadOnly: unreadOnly})
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) error {
	n, err := svc.repo.UpdateNotifications(ctx, userID, []string{id}, true, false)
	if err != nil {
		return errors.Wrap(err, "updating notification")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := svc.repo.UpdateNotifications(ctx, userID, nil, true, false)
	return n, errors.Wrap(err, "updating notifications")
}

func (svc *service) Delete(ctx context.Context, userID, id string) error {
	n, err := svc.repo.UpdateNotifications(ctx, userID, []string{id}, false, true)
	if err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
