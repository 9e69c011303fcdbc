package message

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("message")

	errSelfMessage = core.NewValidationError(nil, core.FieldError{Field: "recipientId", Error: "cannot send a message to yourself"})
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		// QueryConversation returns the messages exchanged between userID & otherID, oldest first.
		QueryConversation(ctx context.Context, userID, otherID string) ([]Message, error)
		// QueryUserMessages returns every message sent or received by userID, newest first.
		QueryUserMessages(ctx context.Context, userID string) ([]Message, error)
		// MarkRead sets ReadAt on the unread messages sent by senderID to recipientID.
		MarkRead(ctx context.Context, recipientID, senderID string, at time.Time) (int, error)
	}

	Service interface {
		Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error)
		Conversation(ctx context.Context, usr user.User, otherID string) ([]Message, error)
		Inbox(ctx context.Context, usr user.User) ([]InboxEntry, error)
		// MarkRead marks every message from otherID to usr as read.
		MarkRead(ctx context.Context, usr user.User, otherID string) (int, error)
	}

	service struct {
		repo   Repository
		users  user.Service
		events core.EventPublisher
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users user.Service, events core.EventPublisher) Service {
	return &service{repo: repo, users: users, events: events}
}

func (svc *service) Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error) {
	if nm.RecipientID == sender.ID {
		return Message{}, errSelfMessage
	}
	recipient, err := svc.users.GetByID(ctx, nm.RecipientID)
	if err != nil {
		return Message{}, err
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Body:        nm.Body,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	evt, err := core.NewEvent(core.EventMessageSent, []string{recipient.ID}, core.Notice{
		Title: "New message",
		Body:  fmt.Sprintf("%s sent you a message.", sender.Name),
		Data:  map[string]interface{}{"messageId": msg.ID, "senderId": sender.ID},
	})
	if err != nil {
		return Message{}, err
	}
	if err := svc.events.Publish(ctx, []core.Event{evt}); err != nil {
		return Message{}, errors.Wrap(err, "publishing events")
	}
	return msg, nil
}

func (svc *service) Conversation(ctx context.Context, usr user.User, otherID string) ([]Message, error) {
	if _, err := svc.users.GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	return svc.repo.QueryConversation(ctx, usr.ID, otherID)
}

func (svc *service) Inbox(ctx context.Context, usr user.User) ([]InboxEntry, error) {
	msgs, err := svc.repo.QueryUserMessages(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}

	entries := make([]InboxEntry, 0)
	index := make(map[string]int)
	for _, m := range msgs {
		other := m.CounterpartOf(usr.ID)
		i, ok := index[other]
		if !ok {
			i = len(entries)
			index[other] = i
			entries = append(entries, InboxEntry{CounterpartID: other, LastMessage: m})
		}
		if m.RecipientID == usr.ID && m.ReadAt == nil {
			entries[i].UnreadCount++
		}
		if m.CreatedAt.After(entries[i].LastMessage.CreatedAt) {
			entries[i].LastMessage = m
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastMessage.CreatedAt.After(entries[j].LastMessage.CreatedAt)
	})
	return entries, nil
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, otherID string) (int, error) {
	n, err := svc.repo.MarkRead(ctx, usr.ID, otherID, time.Now().UTC())
	return n, errors.Wrap(err, "marking messages read")
}
