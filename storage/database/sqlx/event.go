package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core"
)

const eventColumns = `id, kind, recipients, payload, status, attempts, next_attempt_at, last_error, created_at, delivered_at`

type eventRow struct {
	ID            string         `db:"id"`
	Kind          string         `db:"kind"`
	Recipients    pq.StringArray `db:"recipients"`
	Payload       []byte         `db:"payload"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	NextAttemptAt time.Time      `db:"next_attempt_at"`
	LastError     null.String    `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
	DeliveredAt   null.Time      `db:"delivered_at"`
}

func toEventRow(evt core.Event) eventRow {
	recipients := evt.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return eventRow{
		ID:            evt.ID,
		Kind:          evt.Kind,
		Recipients:    recipients,
		Payload:       evt.Payload,
		Status:        evt.Status,
		Attempts:      evt.Attempts,
		NextAttemptAt: evt.NextAttemptAt.UTC(),
		LastError:     null.NewString(evt.LastError, evt.LastError != ""),
		CreatedAt:     evt.CreatedAt.UTC(),
		DeliveredAt:   null.NewTime(evt.DeliveredAt.UTC(), !evt.DeliveredAt.IsZero()),
	}
}

func (row eventRow) toEvent() core.Event {
	return core.Event{
		ID:            row.ID,
		Kind:          row.Kind,
		Recipients:    row.Recipients,
		Payload:       json.RawMessage(row.Payload),
		Status:        row.Status,
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt.UTC(),
		LastError:     row.LastError.String,
		CreatedAt:     row.CreatedAt.UTC(),
		DeliveredAt:   row.DeliveredAt.Time.UTC(),
	}
}

type eventRepository struct {
	baseRepository
}

var _ core.EventRepository = (*eventRepository)(nil)

// NewEventRepository returns the outbox stored in the "event" table.
func NewEventRepository(exec core.DBExecutor) core.EventRepository {
	return &eventRepository{baseRepository{exec: exec}}
}

func (repo eventRepository) Publish(ctx context.Context, events []core.Event, exec ...core.DBExecutor) error {
	if len(events) == 0 {
		return nil
	}
	exe := repo.getExec(exec)
	q := `INSERT INTO event (kind, recipients, payload, status, attempts, next_attempt_at, created_at)
		VALUES (:kind, :recipients, :payload, :status, :attempts, :next_attempt_at, :created_at)`

	rows := make([]eventRow, 0, len(events))
	for _, evt := range events {
		rows = append(rows, toEventRow(evt))
	}
	if _, err := sqlx.NamedExecContext(ctx, exe, q, rows); err != nil {
		return errors.Wrap(err, "inserting events")
	}
	return nil
}

func (repo eventRepository) QueryDueEvents(ctx context.Context, now time.Time, limit int) ([]core.Event, error) {
	var rows []eventRow
	q := `SELECT ` + eventColumns + ` FROM event
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY created_at, id
		LIMIT $3`
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, core.EventPending, now.UTC(), limit); err != nil {
		return nil, errors.Wrap(err, "querying due events")
	}
	events := make([]core.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events, nil
}

func (repo eventRepository) UpdateEvent(ctx context.Context, evt core.Event) error {
	if !isUUID(evt.ID) {
		return core.NewNotFoundError("event", evt.ID)
	}
	q := `UPDATE event SET status = :status, attempts = :attempts, next_attempt_at = :next_attempt_at,
			last_error = :last_error, delivered_at = :delivered_at
		WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, toEventRow(evt)); err != nil {
		return errors.Wrap(err, "updating event")
	}
	return nil
}
