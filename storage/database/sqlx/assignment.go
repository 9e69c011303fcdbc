package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
)

type assignmentRow struct {
	ID         string      `db:"id"`
	MemberID   string      `db:"member_id"`
	ClassID    string      `db:"class_id"`
	AssignedBy null.String `db:"assigned_by"`
	AssignedAt time.Time   `db:"assigned_at"`
}

func (row assignmentRow) toAssignment(ledger assignment.Ledger) assignment.Assignment {
	return assignment.Assignment{
		ID:         row.ID,
		Ledger:     ledger,
		MemberID:   row.MemberID,
		ClassID:    row.ClassID,
		AssignedBy: row.AssignedBy.String,
		AssignedAt: row.AssignedAt.UTC(),
	}
}

// ledgerTable returns the table & member column of a ledger.
func ledgerTable(ledger assignment.Ledger) (table, memberCol string) {
	if ledger == assignment.Tutors {
		return "assign_tutor", "tutor_id"
	}
	return "assign_student", "student_id"
}

type assignmentRepository struct {
	baseRepository
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(exec core.DBExecutor) assignment.Repository {
	return &assignmentRepository{baseRepository{exec: exec}}
}

// InsertAssignments skips the rows already in the ledger and returns the inserted ones.
func (repo assignmentRepository) InsertAssignments(ctx context.Context, ledger assignment.Ledger, rows []assignment.Assignment, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	exe := repo.getExec(exec)
	table, memberCol := ledgerTable(ledger)
	q := fmt.Sprintf(
		`INSERT INTO %[1]s (%[2]s, class_id, assigned_by, assigned_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (class_id, %[2]s) DO NOTHING
		RETURNING id, %[2]s AS member_id, class_id, assigned_by, assigned_at`,
		table, memberCol,
	)

	inserted := make([]assignment.Assignment, 0, len(rows))
	for _, a := range rows {
		var row assignmentRow
		err := sqlx.GetContext(ctx, exe, &row, q,
			a.MemberID, a.ClassID, null.NewString(a.AssignedBy, a.AssignedBy != ""), a.AssignedAt.UTC())
		if err != nil {
			if errors.Cause(err) == sql.ErrNoRows {
				continue // already assigned
			}
			return nil, errors.Wrapf(err, "inserting %s assignment", ledger)
		}
		inserted = append(inserted, row.toAssignment(ledger))
	}
	return inserted, nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, ledger assignment.Ledger, filter assignment.QueryFilter, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	exe := repo.getExec(exec)
	table, memberCol := ledgerTable(ledger)

	var where whereClause
	if filter.ClassIDs != nil {
		where.add("class_id = ANY(?)", pq.Array(validUUIDs(filter.ClassIDs)))
	}
	if filter.MemberIDs != nil {
		where.add(memberCol+" = ANY(?)", pq.Array(validUUIDs(filter.MemberIDs)))
	}

	var rows []assignmentRow
	q := exe.Rebind(fmt.Sprintf(
		`SELECT id, %s AS member_id, class_id, assigned_by, assigned_at FROM %s%s ORDER BY assigned_at, id`,
		memberCol, table, where.String(),
	))
	if err := sqlx.SelectContext(ctx, exe, &rows, q, where.args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s assignments", ledger)
	}
	out := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAssignment(ledger))
	}
	return out, nil
}

func (repo assignmentRepository) DeleteAssignments(ctx context.Context, ledger assignment.Ledger, classID string, memberIDs []string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(classID) {
		return 0, nil
	}
	table, memberCol := ledgerTable(ledger)
	q := fmt.Sprintf(`DELETE FROM %s WHERE class_id = $1 AND %s = ANY($2)`, table, memberCol)
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, q, classID, pq.Array(validUUIDs(memberIDs))))
	return n, errors.Wrapf(err, "deleting %s assignments", ledger)
}

func (repo assignmentRepository) DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(classID) {
		return 0, nil
	}
	exe := repo.getExec(exec)
	var total int
	for _, ledger := range []assignment.Ledger{assignment.Students, assignment.Tutors} {
		table, _ := ledgerTable(ledger)
		n, err := rowsAffected(exe.ExecContext(ctx, `DELETE FROM `+table+` WHERE class_id = $1`, classID))
		if err != nil {
			return total, errors.Wrapf(err, "deleting %s assignments", ledger)
		}
		total += n
	}
	return total, nil
}
