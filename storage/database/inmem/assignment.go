package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var (
	_ assignment.Repository = (*assignmentRepository)(nil)
)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func assignmentKey(classID, memberID string) string {
	return classID + "/" + memberID
}

// InsertAssignments skips the rows already in the ledger, like the unique index does in postgres.
func (repo *assignmentRepository) InsertAssignments(_ context.Context, ledger assignment.Ledger, rows []assignment.Assignment, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	table := repo.db.assignments[ledger]
	inserted := make([]assignment.Assignment, 0, len(rows))
	for _, a := range rows {
		key := assignmentKey(a.ClassID, a.MemberID)
		if _, ok := table[key]; ok {
			continue
		}
		a := a
		a.ID = newID()
		a.Ledger = ledger
		table[key] = &a
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, ledger assignment.Ledger, filter assignment.QueryFilter, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments[ledger] {
		if filter.Match(*a) {
			rows = append(rows, *a)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AssignedAt.Equal(rows[j].AssignedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].AssignedAt.Before(rows[j].AssignedAt)
	})
	return rows, nil
}

func (repo *assignmentRepository) DeleteAssignments(_ context.Context, ledger assignment.Ledger, classID string, memberIDs []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	table := repo.db.assignments[ledger]
	var n int
	for _, id := range memberIDs {
		key := assignmentKey(classID, id)
		if _, ok := table[key]; ok {
			delete(table, key)
			n++
		}
	}
	return n, nil
}

func (repo *assignmentRepository) DeleteByClass(_ context.Context, classID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, table := range repo.db.assignments {
		for key, a := range table {
			if a.ClassID == classID {
				delete(table, key)
				n++
			}
		}
	}
	return n, nil
}
