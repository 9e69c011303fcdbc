package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/class"
)

const classColumns = `id, name, major, subject, created_at, updated_at`

var classOrderColumns = map[string]string{
	"name":       "name",
	"major":      "major",
	"subject":    "subject",
	"created_at": "created_at",
}

type classRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Major     string    `db:"major"`
	Subject   string    `db:"subject"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row classRow) toClass() class.Class {
	return class.Class{
		ID:        row.ID,
		Name:      row.Name,
		Major:     row.Major,
		Subject:   row.Subject,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type classRepository struct {
	baseRepository
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(exec core.DBExecutor) class.Repository {
	return &classRepository{baseRepository{exec: exec}}
}

func (repo classRepository) CreateClass(ctx context.Context, c class.Class, exec ...core.DBExecutor) (class.Class, error) {
	q := `INSERT INTO class (name, major, subject, created_at, updated_at)
		VALUES (:name, :major, :subject, :created_at, :updated_at)
		RETURNING ` + classColumns
	var row classRow
	if err := namedGet(ctx, repo.getExec(exec), &row, q, classRow{
		Name:      c.Name,
		Major:     c.Major,
		Subject:   c.Subject,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return row.toClass(), nil
}

func (repo classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]class.Class, error) {
	exe := repo.getExec(exec)
	var where whereClause

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.add("(name ILIKE ? OR major ILIKE ? OR subject ILIKE ?)", val, val, val)
		}
		if filter.Major != "" {
			where.add("major ILIKE ?", filter.Major)
		}
		if filter.Subject != "" {
			where.add("subject ILIKE ?", filter.Subject)
		}
		if filter.IDs != nil {
			where.add("id = ANY(?)", pq.Array(validUUIDs(filter.IDs)))
		}
	}

	var rows []classRow
	q := exe.Rebind(`SELECT ` + classColumns + ` FROM class` + where.String() + orderBy(ordering, classOrderColumns, "name ASC"))
	if err := sqlx.SelectContext(ctx, exe, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes, nil
}

func (repo classRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	if !isUUID(id) {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+classColumns+` FROM class WHERE id = $1`, id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return row.toClass(), nil
}

func (repo classRepository) UpdateClass(ctx context.Context, c class.Class, exec ...core.DBExecutor) (class.Class, error) {
	if !isUUID(c.ID) {
		return class.Class{}, class.ErrNotFound
	}
	q := `UPDATE class SET name = :name, major = :major, subject = :subject, updated_at = :updated_at
		WHERE id = :id
		RETURNING ` + classColumns
	var row classRow
	if err := namedGet(ctx, repo.getExec(exec), &row, q, classRow{
		ID:        c.ID,
		Name:      c.Name,
		Major:     c.Major,
		Subject:   c.Subject,
		UpdatedAt: c.UpdatedAt.UTC(),
	}); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "updating class")
	}
	return row.toClass(), nil
}

func (repo classRepository) DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return class.ErrNotFound
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, `DELETE FROM class WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if n == 0 {
		return class.ErrNotFound
	}
	return nil
}
