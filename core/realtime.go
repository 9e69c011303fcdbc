package core

// Realtime message types
const (
	RealtimeNotification    = "notification"
	RealtimeMessage         = "message"
	RealtimeDashboardUpdate = "dashboard.update"
)

type (
	// RealtimeEvent is pushed to connected clients.
	RealtimeEvent struct {
		Type string      `json:"type"`
		Data interface{} `json:"data,omitempty"`
	}

	// RealtimePusher delivers RealtimeEvents to connected users. Offline users are skipped: delivery is best-effort.
	RealtimePusher interface {
		// Push sends evt to every connection of userID and reports whether any received it.
		Push(userID string, evt RealtimeEvent) bool
		// Broadcast sends evt to every connection and returns the number of users reached.
		Broadcast(evt RealtimeEvent) int
	}
)
