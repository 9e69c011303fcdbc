package outboxsvc

import (
	"context"
	"errors"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/notification"
	emailsvc "github.com/trezcool/mwalimu/services/email"
	inmemdb "github.com/trezcool/mwalimu/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type pushed struct {
	userID string
	evt    core.RealtimeEvent
}

type fakePusher struct {
	mu         sync.Mutex
	pushes     []pushed
	broadcasts []core.RealtimeEvent
}

func (p *fakePusher) Push(userID string, evt core.RealtimeEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushed{userID: userID, evt: evt})
	return true
}

func (p *fakePusher) Broadcast(evt core.RealtimeEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, evt)
	return 1
}

func mockNow(t *testing.T, now time.Time) func(d time.Duration) {
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = time.Now })
	return func(d time.Duration) {
		now = now.Add(d)
	}
}

func publish(t *testing.T, repo core.EventRepository, kind string, payload interface{}, recipients ...string) {
	evt, err := core.NewEvent(kind, recipients, payload)
	require.NoError(t, err)
	evt.NextAttemptAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Publish(context.Background(), []core.Event{evt}))
}

func TestRelay_RetriesWithBackoffThenGivesUp(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig() // MaxAttempts 3, BaseBackoff 1s
	db := inmemdb.NewDB()
	repo := inmemdb.NewEventRepository(db)
	relay := NewRelay(conf, repo, nopLogger{}, nil)

	var calls int
	relay.Register("flaky", HandlerFunc(func(context.Context, core.Event) error {
		calls++
		return errors.New("boom")
	}))
	publish(t, repo, "flaky", map[string]string{"a": "b"})
	advance := mockNow(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	evt := db.Events()[0]
	assert.Equal(t, core.EventPending, evt.Status)
	assert.Equal(t, 1, evt.Attempts)
	assert.Equal(t, "boom", evt.LastError)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), evt.NextAttemptAt)

	// not due yet
	_, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	advance(time.Second)
	_, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	evt = db.Events()[0]
	assert.Equal(t, 2, evt.Attempts)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 3, 0, time.UTC), evt.NextAttemptAt) // 1s + 2s

	advance(2 * time.Second)
	_, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	evt = db.Events()[0]
	assert.Equal(t, 3, evt.Attempts)
	assert.Equal(t, core.EventDead, evt.Status)

	advance(time.Hour)
	_, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRelay_DeliversAndSkipsUnknownKinds(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	db := inmemdb.NewDB()
	repo := inmemdb.NewEventRepository(db)
	relay := NewRelay(conf, repo, nopLogger{}, nil)
	relay.Register("ok", HandlerFunc(func(context.Context, core.Event) error { return nil }))

	publish(t, repo, "ok", nil)
	publish(t, repo, "unknown", nil)
	mockNow(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	statuses := make(map[string]string)
	for _, evt := range db.Events() {
		statuses[evt.Kind] = evt.Status
	}
	assert.Equal(t, map[string]string{"ok": core.EventDelivered, "unknown": core.EventDead}, statuses)
}

func TestBackoff(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Outbox.BaseBackoff = 5 * time.Second
	relay := NewRelay(conf, nil, nopLogger{}, nil)

	assert.Equal(t, 5*time.Second, relay.backoff(1))
	assert.Equal(t, 10*time.Second, relay.backoff(2))
	assert.Equal(t, 40*time.Second, relay.backoff(4))
	assert.Equal(t, maxBackoff, relay.backoff(20))
}

func TestEmailHandler(t *testing.T) {
	emailsvc.ClearSentMessages()
	conf := core.NewTestConfig()
	h := EmailHandler(emailsvc.NewConsoleServiceMock(conf))

	evt, err := core.NewEmailEvent(&core.EmailMessage{
		To:           []mail.Address{{Name: "Jane", Address: "jane@test.com"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Jane", "ResetURL": "http://localhost:3000/password-reset/a/b"},
	})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), evt))

	sent := emailsvc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "jane@test.com", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "http://localhost:3000/password-reset/a/b")
	}
}

func TestNoticeHandler(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.NewDB()
	notifications := notification.NewService(inmemdb.NewNotificationRepository(db))
	pusher := &fakePusher{}
	h := NoticeHandler(notifications, pusher)

	evt, err := core.NewEvent(core.EventAttendanceMarked, []string{"s1", "s2"}, core.Notice{
		Title:     "Attendance marked",
		Body:      "Class 1",
		Dashboard: true,
	})
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, evt))

	for _, uid := range []string{"s1", "s2"} {
		ns, err := notifications.List(ctx, uid, true)
		require.NoError(t, err)
		if assert.Len(t, ns, 1) {
			assert.Equal(t, "Attendance marked", ns[0].Title)
			assert.Equal(t, core.EventAttendanceMarked, ns[0].Kind)
		}
	}
	assert.Len(t, pusher.pushes, 2)
	if assert.Len(t, pusher.broadcasts, 1) {
		assert.Equal(t, core.RealtimeDashboardUpdate, pusher.broadcasts[0].Type)
	}

	// messages are also pushed as such
	pusher.pushes = nil
	evt, err = core.NewEvent(core.EventMessageSent, []string{"s1"}, core.Notice{Title: "New message"})
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, evt))
	types := make([]string, 0)
	for _, p := range pusher.pushes {
		types = append(types, p.evt.Type)
	}
	assert.ElementsMatch(t, []string{core.RealtimeNotification, core.RealtimeMessage}, types)
}
