package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/attendance"
)

const attendanceColumns = `id, schedule_id, student_id, status, marked_by, marked_at`

type attendanceRow struct {
	ID         string      `db:"id"`
	ScheduleID string      `db:"schedule_id"`
	StudentID  string      `db:"student_id"`
	Status     string      `db:"status"`
	MarkedBy   null.String `db:"marked_by"`
	MarkedAt   time.Time   `db:"marked_at"`
}

func (row attendanceRow) toAttendance() attendance.Attendance {
	return attendance.Attendance{
		ID:         row.ID,
		ScheduleID: row.ScheduleID,
		StudentID:  row.StudentID,
		Status:     row.Status,
		MarkedBy:   row.MarkedBy.String,
		MarkedAt:   row.MarkedAt.UTC(),
	}
}

type attendanceRepository struct {
	baseRepository
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(exec core.DBExecutor) attendance.Repository {
	return &attendanceRepository{baseRepository{exec: exec}}
}

func (repo attendanceRepository) QueryAttendances(ctx context.Context, filter attendance.QueryFilter, exec ...core.DBExecutor) ([]attendance.Attendance, error) {
	exe := repo.getExec(exec)
	var where whereClause
	if filter.ScheduleIDs != nil {
		where.add("schedule_id = ANY(?)", pq.Array(validUUIDs(filter.ScheduleIDs)))
	}
	if filter.StudentIDs != nil {
		where.add("student_id = ANY(?)", pq.Array(validUUIDs(filter.StudentIDs)))
	}

	var rows []attendanceRow
	q := exe.Rebind(`SELECT ` + attendanceColumns + ` FROM attendance` + where.String() + " ORDER BY marked_at, id")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendances")
	}
	out := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAttendance())
	}
	return out, nil
}

// UpsertAttendances only touches a (schedule, student) row when its status changes,
// so RowsAffected counts inserted and changed rows only.
func (repo attendanceRepository) UpsertAttendances(ctx context.Context, rows []attendance.Attendance, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO attendance (schedule_id, student_id, status, marked_by, marked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (schedule_id, student_id) DO UPDATE
			SET status = excluded.status, marked_by = excluded.marked_by, marked_at = excluded.marked_at
			WHERE attendance.status <> excluded.status`

	var total int
	for _, a := range rows {
		n, err := rowsAffected(exe.ExecContext(ctx, q,
			a.ScheduleID, a.StudentID, a.Status, null.NewString(a.MarkedBy, a.MarkedBy != ""), a.MarkedAt.UTC()))
		if err != nil {
			return total, errors.Wrap(err, "upserting attendance")
		}
		total += n
	}
	return total, nil
}

func (repo attendanceRepository) DeleteBySchedule(ctx context.Context, scheduleID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(scheduleID) {
		return 0, nil
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, `DELETE FROM attendance WHERE schedule_id = $1`, scheduleID))
	return n, errors.Wrap(err, "deleting schedule attendances")
}

func (repo attendanceRepository) DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(classID) {
		return 0, nil
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx,
		`DELETE FROM attendance WHERE schedule_id IN (SELECT id FROM schedule WHERE class_id = $1)`, classID))
	return n, errors.Wrap(err, "deleting class attendances")
}
