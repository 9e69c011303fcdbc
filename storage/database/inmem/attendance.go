package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func attendanceKey(scheduleID, studentID string) string {
	return scheduleID + "/" + studentID
}

func (repo *attendanceRepository) QueryAttendances(_ context.Context, filter attendance.QueryFilter, _ ...core.DBExecutor) ([]attendance.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]attendance.Attendance, 0)
	for _, a := range repo.db.attendances {
		if filter.Match(*a) {
			rows = append(rows, *a)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MarkedAt.Equal(rows[j].MarkedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].MarkedAt.Before(rows[j].MarkedAt)
	})
	return rows, nil
}

func (repo *attendanceRepository) UpsertAttendances(_ context.Context, rows []attendance.Attendance, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, a := range rows {
		key := attendanceKey(a.ScheduleID, a.StudentID)
		if existing, ok := repo.db.attendances[key]; ok {
			if existing.Status == a.Status {
				continue
			}
			a.ID = existing.ID
		} else {
			a.ID = newID()
		}
		a := a
		repo.db.attendances[key] = &a
		n++
	}
	return n, nil
}

func (repo *attendanceRepository) DeleteBySchedule(_ context.Context, scheduleID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for key, a := range repo.db.attendances {
		if a.ScheduleID == scheduleID {
			delete(repo.db.attendances, key)
			n++
		}
	}
	return n, nil
}

func (repo *attendanceRepository) DeleteByClass(_ context.Context, classID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for key, a := range repo.db.attendances {
		if s, ok := repo.db.schedules[a.ScheduleID]; ok && s.ClassID == classID {
			delete(repo.db.attendances, key)
			n++
		}
	}
	return n, nil
}
