package outboxsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/notification"
)

// NoticeKinds are the event kinds whose payload is a core.Notice.
var NoticeKinds = []string{
	core.EventClassRosterChanged,
	core.EventClassTutorsChanged,
	core.EventScheduleCreated,
	core.EventScheduleUpdated,
	core.EventAttendanceMarked,
	core.EventMessageSent,
	core.EventBlogCommented,
	core.EventBlogLiked,
}

// EmailHandler sends EventEmail events.
func EmailHandler(email core.EmailService) Handler {
	return HandlerFunc(func(ctx context.Context, evt core.Event) error {
		var msg core.EmailMessage
		if err := json.Unmarshal(evt.Payload, &msg); err != nil {
			return errors.Wrap(err, "decoding email")
		}
		return email.SendMessage(ctx, &msg)
	})
}

// NoticeHandler stores a notification per recipient, then pushes it to those online.
// Dashboard notices also trigger a dashboard refresh for every connected user.
func NoticeHandler(notifications notification.Service, pusher core.RealtimePusher) Handler {
	return HandlerFunc(func(ctx context.Context, evt core.Event) error {
		var notice core.Notice
		if err := json.Unmarshal(evt.Payload, &notice); err != nil {
			return errors.Wrap(err, "decoding notice")
		}

		ns, err := notifications.Notify(ctx, evt.Kind, evt.Recipients, notice)
		if err != nil {
			return err
		}
		for _, n := range ns {
			pusher.Push(n.UserID, core.RealtimeEvent{Type: core.RealtimeNotification, Data: n})
			if evt.Kind == core.EventMessageSent {
				pusher.Push(n.UserID, core.RealtimeEvent{Type: core.RealtimeMessage, Data: notice.Data})
			}
		}
		if notice.Dashboard {
			pusher.Broadcast(core.RealtimeEvent{
				Type: core.RealtimeDashboardUpdate,
				Data: map[string]interface{}{"kind": evt.Kind},
			})
		}
		return nil
	})
}

// RegisterDefaultHandlers wires the email & notice handlers.
func RegisterDefaultHandlers(r *Relay, email core.EmailService, notifications notification.Service, pusher core.RealtimePusher) {
	r.Register(core.EventEmail, EmailHandler(email))
	notice := NoticeHandler(notifications, pusher)
	for _, kind := range NoticeKinds {
		r.Register(kind, notice)
	}
}
