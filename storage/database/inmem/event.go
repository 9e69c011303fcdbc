package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/mwalimu/core"
)

type eventRepository struct {
	db *DB
}

var _ core.EventRepository = (*eventRepository)(nil)

func NewEventRepository(db *DB) core.EventRepository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) Publish(_ context.Context, events []core.Event, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, evt := range events {
		evt := evt
		evt.ID = newID()
		repo.db.events[evt.ID] = &evt
	}
	return nil
}

func (repo *eventRepository) QueryDueEvents(_ context.Context, now time.Time, limit int) ([]core.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]core.Event, 0)
	for _, evt := range repo.db.events {
		if evt.Status == core.EventPending && !evt.NextAttemptAt.After(now) {
			events = append(events, *evt)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (repo *eventRepository) UpdateEvent(_ context.Context, evt core.Event) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.events[evt.ID]; !ok {
		return core.NewNotFoundError("event", evt.ID)
	}
	repo.db.events[evt.ID] = &evt
	return nil
}

// Events returns every stored event, oldest first.
func (db *DB) Events() []core.Event {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	events := make([]core.Event, 0, len(db.events))
	for _, evt := range db.events {
		events = append(events, *evt)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events
}
