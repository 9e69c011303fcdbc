package notification_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/notification"
	"github.com/trezcool/mwalimu/testutil"
)

func TestService(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	notice := core.Notice{Title: "Attendance marked", Body: "Present", Data: map[string]interface{}{"scheduleId": "s1"}}

	ns, err := app.Notifications.Notify(ctx, core.EventAttendanceMarked, []string{"u1", " u2 ", "u1", ""}, notice)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "u1", ns[0].UserID)
	assert.Equal(t, "u2", ns[1].UserID)
	assert.Equal(t, core.EventAttendanceMarked, ns[0].Kind)
	assert.Equal(t, notice.Title, ns[0].Title)
	assert.False(t, ns[0].IsRead)

	none, err := app.Notifications.Notify(ctx, core.EventAttendanceMarked, nil, notice)
	require.NoError(t, err)
	assert.Empty(t, none)

	later, err := app.Notifications.Notify(ctx, core.EventMessageSent, []string{"u1"}, core.Notice{Title: "New message"})
	require.NoError(t, err)

	list, err := app.Notifications.List(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, later[0].ID, list[0].ID, "newest first")

	assert.Equal(t, notification.ErrNotFound, errors.Cause(app.Notifications.MarkRead(ctx, "u1", ns[1].ID)), "someone else's")
	require.NoError(t, app.Notifications.MarkRead(ctx, "u1", ns[0].ID))

	unread, err := app.Notifications.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, later[0].ID, unread[0].ID)

	require.NoError(t, app.Notifications.Delete(ctx, "u1", later[0].ID))
	assert.Equal(t, notification.ErrNotFound, errors.Cause(app.Notifications.Delete(ctx, "u1", later[0].ID)))

	n, err := app.Notifications.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "deleted notifications are left alone")

	n, err = app.Notifications.MarkAllRead(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
