package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Event kinds
const (
	EventEmail              = "email"
	EventClassRosterChanged = "class.roster_changed"
	EventClassTutorsChanged = "class.tutors_changed"
	EventScheduleCreated    = "schedule.created"
	EventScheduleUpdated    = "schedule.updated"
	EventAttendanceMarked   = "attendance.marked"
	EventMessageSent        = "message.sent"
	EventBlogCommented      = "blog.commented"
	EventBlogLiked          = "blog.liked"
)

// Event statuses
const (
	EventPending   = "pending"
	EventDelivered = "delivered"
	EventDead      = "dead"
)

type (
	// Event is an outbox entry: a side effect recorded next to the write that caused it,
	// and delivered later by the relay.
	Event struct {
		ID            string          `json:"id" db:"id"`
		Kind          string          `json:"kind" db:"kind"`
		Recipients    []string        `json:"recipients" db:"-"`
		Payload       json.RawMessage `json:"payload" db:"payload"`
		Status        string          `json:"status" db:"status"`
		Attempts      int             `json:"attempts" db:"attempts"`
		NextAttemptAt time.Time       `json:"nextAttemptAt" db:"next_attempt_at"`
		LastError     string          `json:"lastError,omitempty" db:"-"`
		CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
		DeliveredAt   time.Time       `json:"deliveredAt,omitempty" db:"-"`
	}

	// Notice is the payload of every event that ends up as a user notification.
	Notice struct {
		Title     string                 `json:"title"`
		Body      string                 `json:"body"`
		Data      map[string]interface{} `json:"data,omitempty"`
		Dashboard bool                   `json:"dashboard,omitempty"` // also broadcast a dashboard refresh
	}

	EventPublisher interface {
		// Publish stores events for later delivery. Pass exec to publish inside a running transaction.
		Publish(ctx context.Context, events []Event, exec ...DBExecutor) error
	}

	EventRepository interface {
		EventPublisher
		// QueryDueEvents returns pending events whose NextAttemptAt is not after now, oldest first.
		QueryDueEvents(ctx context.Context, now time.Time, limit int) ([]Event, error)
		// UpdateEvent saves the delivery state (status, attempts, next attempt, error, delivery time) of evt.
		UpdateEvent(ctx context.Context, evt Event) error
	}
)

// NewEvent builds a pending Event with payload encoded as JSON.
func NewEvent(kind string, recipients []string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errors.Wrapf(err, "encoding %s payload", kind)
	}
	now := time.Now().UTC()
	return Event{
		Kind:          kind,
		Recipients:    recipients,
		Payload:       data,
		Status:        EventPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// NewEmailEvent wraps msg in an EventEmail.
func NewEmailEvent(msg *EmailMessage) (Event, error) {
	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, to.Address)
	}
	return NewEvent(EventEmail, recipients, msg)
}
