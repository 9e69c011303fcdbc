package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) taken(s schedule.Schedule) bool {
	for _, other := range repo.db.schedules {
		if other.ClassID == s.ClassID && other.Date == s.Date && other.Slot == s.Slot && other.ID != s.ID {
			return true
		}
	}
	return false
}

// InsertSchedules skips the rows whose (class, date, slot) is already planned.
func (repo *scheduleRepository) InsertSchedules(_ context.Context, rows []schedule.Schedule, _ ...core.DBExecutor) ([]schedule.Schedule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inserted := make([]schedule.Schedule, 0, len(rows))
	for _, s := range rows {
		if repo.taken(s) {
			continue
		}
		s := s
		s.ID = newID()
		repo.db.schedules[s.ID] = &s
		inserted = append(inserted, s)
	}
	return inserted, nil
}

func (repo *scheduleRepository) QuerySchedules(_ context.Context, filter *schedule.QueryFilter, _ ...core.DBExecutor) ([]schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]schedule.Schedule, 0)
	for _, s := range repo.db.schedules {
		if filter.Match(*s) {
			rows = append(rows, *s)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.ClassID < b.ClassID
	})
	return rows, nil
}

func (repo *scheduleRepository) GetSchedule(_ context.Context, id string, _ ...core.DBExecutor) (schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.schedules[id]; ok {
		return *s, nil
	}
	return schedule.Schedule{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) UpdateSchedule(_ context.Context, s schedule.Schedule, _ ...core.DBExecutor) (schedule.Schedule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schedules[s.ID]; !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	repo.db.schedules[s.ID] = &s
	return s, nil
}

func (repo *scheduleRepository) DeleteSchedule(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schedules[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(repo.db.schedules, id)
	return nil
}

func (repo *scheduleRepository) DeleteByClass(_ context.Context, classID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, s := range repo.db.schedules {
		if s.ClassID == classID {
			delete(repo.db.schedules, id)
			n++
		}
	}
	return n, nil
}
