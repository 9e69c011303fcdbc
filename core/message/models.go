package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
)

type Message struct {
	ID          string     `json:"id" bson:"_id"`
	SenderID    string     `json:"senderId" bson:"senderId"`
	RecipientID string     `json:"recipientId" bson:"recipientId"`
	Body        string     `json:"body" bson:"body"`
	ReadAt      *time.Time `json:"readAt" bson:"readAt,omitempty"` // UTC
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`     // UTC
}

// CounterpartOf returns the other participant of the conversation m belongs to.
func (m Message) CounterpartOf(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

type NewMessage struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Body        string `json:"body" validate:"required,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.RecipientID = core.CleanString(nm.RecipientID)
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

// InboxEntry is the latest message exchanged with a counterpart.
type InboxEntry struct {
	CounterpartID string  `json:"counterpartId"`
	LastMessage   Message `json:"lastMessage"`
	UnreadCount   int     `json:"unreadCount"`
}
