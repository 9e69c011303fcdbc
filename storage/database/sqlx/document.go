package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/document"
)

const documentColumns = `id, owner_id, class_id, name, path, url, content_type, size, created_at`

type documentRow struct {
	ID          string      `db:"id"`
	OwnerID     string      `db:"owner_id"`
	ClassID     null.String `db:"class_id"`
	Name        string      `db:"name"`
	Path        string      `db:"path"`
	URL         string      `db:"url"`
	ContentType string      `db:"content_type"`
	Size        int64       `db:"size"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (row documentRow) toDocument() document.Document {
	return document.Document{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		ClassID:     row.ClassID.String,
		Name:        row.Name,
		Path:        row.Path,
		URL:         row.URL,
		ContentType: row.ContentType,
		Size:        row.Size,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type documentRepository struct {
	baseRepository
}

var _ document.Repository = (*documentRepository)(nil)

func NewDocumentRepository(exec core.DBExecutor) document.Repository {
	return &documentRepository{baseRepository{exec: exec}}
}

func (repo documentRepository) CreateDocument(ctx context.Context, d document.Document, exec ...core.DBExecutor) (document.Document, error) {
	q := `INSERT INTO document (owner_id, class_id, name, path, url, content_type, size, created_at)
		VALUES (:owner_id, :class_id, :name, :path, :url, :content_type, :size, :created_at)
		RETURNING ` + documentColumns
	var row documentRow
	if err := namedGet(ctx, repo.getExec(exec), &row, q, documentRow{
		OwnerID:     d.OwnerID,
		ClassID:     null.NewString(d.ClassID, d.ClassID != ""),
		Name:        d.Name,
		Path:        d.Path,
		URL:         d.URL,
		ContentType: d.ContentType,
		Size:        d.Size,
		CreatedAt:   d.CreatedAt.UTC(),
	}); err != nil {
		return document.Document{}, errors.Wrap(err, "inserting document")
	}
	return row.toDocument(), nil
}

func (repo documentRepository) QueryDocuments(ctx context.Context, filter document.QueryFilter, exec ...core.DBExecutor) ([]document.Document, error) {
	exe := repo.getExec(exec)
	var where whereClause
	for col, id := range map[string]string{"owner_id": filter.OwnerID, "class_id": filter.ClassID} {
		if id == "" {
			continue
		}
		if !isUUID(id) {
			return []document.Document{}, nil
		}
		where.add(col+" = ?", id)
	}

	var rows []documentRow
	q := exe.Rebind(`SELECT ` + documentColumns + ` FROM document` + where.String() + " ORDER BY created_at DESC")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}
	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDocument())
	}
	return docs, nil
}

func (repo documentRepository) GetDocument(ctx context.Context, id string, exec ...core.DBExecutor) (document.Document, error) {
	if !isUUID(id) {
		return document.Document{}, document.ErrNotFound
	}
	var row documentRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+documentColumns+` FROM document WHERE id = $1`, id); err != nil {
		return document.Document{}, trapNoRowsErr(err, document.ErrNotFound, "finding document")
	}
	return row.toDocument(), nil
}

func (repo documentRepository) DeleteDocument(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return document.ErrNotFound
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, `DELETE FROM document WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (repo documentRepository) DetachClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(classID) {
		return 0, nil
	}
	n, err := rowsAffected(repo.getExec(exec).ExecContext(ctx, `UPDATE document SET class_id = NULL WHERE class_id = $1`, classID))
	return n, errors.Wrap(err, "detaching class documents")
}
