package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/schedule"
)

const scheduleColumns = `id, class_id, date, slot, type, meeting_link, created_at, updated_at`

type scheduleRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	Date        time.Time   `db:"date"`
	Slot        int         `db:"slot"`
	Type        string      `db:"type"`
	MeetingLink null.String `db:"meeting_link"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row scheduleRow) toSchedule() schedule.Schedule {
	return schedule.Schedule{
		ID:          row.ID,
		ClassID:     row.ClassID,
		Date:        row.Date.Format(core.DateLayout),
		Slot:        row.Slot,
		Type:        row.Type,
		MeetingLink: row.MeetingLink.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type scheduleRepository struct {
	baseRepository
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(exec core.DBExecutor) schedule.Repository {
	return &scheduleRepository{baseRepository{exec: exec}}
}

// InsertSchedules skips the rows whose (class, date, slot) is already planned and returns the inserted ones.
func (repo scheduleRepository) InsertSchedules(ctx context.Context, rows []schedule.Schedule, exec ...core.DBExecutor) ([]schedule.Schedule, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO schedule (class_id, date, slot, type, meeting_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (class_id, date, slot) DO NOTHING
		RETURNING ` + scheduleColumns

	inserted := make([]schedule.Schedule, 0, len(rows))
	for _, s := range rows {
		var row scheduleRow
		err := sqlx.GetContext(ctx, exe, &row, q,
			s.ClassID, s.Date, s.Slot, s.Type, null.NewString(s.MeetingLink, s.MeetingLink != ""),
			s.CreatedAt.UTC(), s.UpdatedAt.UTC())
		if err != nil {
			if errors.Cause(err) == sql.ErrNoRows {
				continue // already scheduled
			}
			return nil, errors.Wrap(err, "inserting schedule")
		}
		inserted = append(inserted, row.toSchedule())
	}
	return inserted, nil
}

func (repo scheduleRepository) QuerySchedules(ctx context.Context, filter *schedule.QueryFilter, exec ...core.DBExecutor) ([]schedule.Schedule, error) {
	exe := repo.getExec(exec)
	var where whereClause

	if filter != nil {
		if filter.Date != "" {
			where.add("date = ?", filter.Date)
		}
		if filter.From != "" {
			where.add("date >= ?", filter.From)
		}
		if filter.To != "" {
			where.add("date <= ?", filter.To)
		}
		if filter.ClassID != "" {
			where.add("class_id = ?", filter.ClassID)
			if !isUUID(filter.ClassID) {
				return []schedule.Schedule{}, nil
			}
		}
		if filter.Slot != 0 {
			where.add("slot = ?", filter.Slot)
		}
		if filter.ClassIDs != nil {
			where.add("class_id = ANY(?)", pq.Array(validUUIDs(filter.ClassIDs)))
		}
	}

	var rows []scheduleRow
	q := exe.Rebind(`SELECT ` + scheduleColumns + ` FROM schedule` + where.String() + " ORDER BY date, slot, class_id")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	schedules := make([]schedule.Schedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, row.toSchedule())
	}
	return schedules, nil
}

func (repo scheduleRepository) GetSchedule(ctx context.Context, id string, exec ...core.DBExecutor) (schedule.Schedule, error) {
	if !isUUID(id) {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	var row scheduleRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+scheduleColumns+` FROM schedule WHERE id = $1`, id); err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, schedule.ErrNotFound, "finding schedule")
	}
	return row.toSchedule(), nil
}

func (repo scheduleRepository) UpdateSchedule(ctx context.Context, s schedule.Schedule, exec ...core.DBExecutor) (schedule.Schedule, error) {
	if !isUUID(s.ID) {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	var row scheduleRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`UPDATE schedule SET type = $2, meeting_link = $3, updated_at = $4 WHERE id = $1 RETURNING `+scheduleColumns,
		s.ID, s.Type, null.NewString(s.MeetingLink, s.MeetingLink != ""), s.UpdatedAt.UTC())
	if err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, schedule.ErrNotFound, "updating schedule")
	}
	return row.toSchedule(), nil
}

func (repo scheduleRepository) DeleteSchedule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return schedule.ErrNotFound
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, `DELETE FROM schedule WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (repo scheduleRepository) DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(classID) {
		return 0, nil
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, `DELETE FROM schedule WHERE class_id = $1`, classID))
	return n, errors.Wrap(err, "deleting class schedules")
}
