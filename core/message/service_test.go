package message_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/message"
	"github.com/trezcool/mwalimu/core/user"
	"github.com/trezcool/mwalimu/testutil"
)

func TestService(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	tutor := testutil.CreateRoleUser(t, app.UserRepo, "tutor", user.RoleTutor)
	amani := testutil.CreateRoleUser(t, app.UserRepo, "amani", user.RoleStudent)
	baraka := testutil.CreateRoleUser(t, app.UserRepo, "baraka", user.RoleStudent)

	send := func(from, to user.User, body string) message.Message {
		t.Helper()
		msg, err := app.Messages.Send(ctx, from, message.NewMessage{RecipientID: to.ID, Body: body})
		require.NoError(t, err)
		return msg
	}

	t.Run("to yourself", func(t *testing.T) {
		_, err := app.Messages.Send(ctx, amani, message.NewMessage{RecipientID: amani.ID, Body: "hi"})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), err)
		assert.Equal(t, "recipientId", vErr.Fields[0].Field)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		_, err := app.Messages.Send(ctx, amani, message.NewMessage{RecipientID: "nope", Body: "hi"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	hello := send(amani, tutor, "Hello")
	reply := send(tutor, amani, "Hi Amani")
	fromBaraka := send(baraka, tutor, "Question")

	t.Run("conversation is symmetric", func(t *testing.T) {
		a, err := app.Messages.Conversation(ctx, amani, tutor.ID)
		require.NoError(t, err)
		b, err := app.Messages.Conversation(ctx, tutor, amani.ID)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		require.Len(t, a, 2)
		assert.Equal(t, hello.ID, a[0].ID)
		assert.Equal(t, reply.ID, a[1].ID)
	})

	t.Run("inbox, latest conversation first", func(t *testing.T) {
		entries, err := app.Messages.Inbox(ctx, tutor)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, message.InboxEntry{CounterpartID: baraka.ID, LastMessage: fromBaraka, UnreadCount: 1}, entries[0])
		assert.Equal(t, amani.ID, entries[1].CounterpartID)
		assert.Equal(t, reply.ID, entries[1].LastMessage.ID)
		assert.Equal(t, 1, entries[1].UnreadCount)
	})

	t.Run("mark read", func(t *testing.T) {
		n, err := app.Messages.MarkRead(ctx, tutor, amani.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		conv, err := app.Messages.Conversation(ctx, tutor, amani.ID)
		require.NoError(t, err)
		assert.NotNil(t, conv[0].ReadAt)
		assert.Nil(t, conv[1].ReadAt, "only messages to the reader are marked")

		entries, err := app.Messages.Inbox(ctx, amani)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].UnreadCount)
	})

	assert.Len(t, testutil.EventsOfKind(app.DB, core.EventMessageSent), 3)
}
