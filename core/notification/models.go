package notification

import (
	"time"
)

type Notification struct {
	ID        string                 `json:"id" bson:"_id"`
	UserID    string                 `json:"userId" bson:"userId"`
	Kind      string                 `json:"kind" bson:"kind"`
	Title     string                 `json:"title" bson:"title"`
	Body      string                 `json:"body" bson:"body"`
	Data      map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	IsRead    bool                   `json:"isRead" bson:"isRead"`
	IsDeleted bool                   `json:"-" bson:"isDeleted"`
	CreatedAt time.Time              `json:"createdAt" bson:"createdAt"` // UTC
}

type QueryFilter struct {
	UserID     string
	UnreadOnly bool `query:"unread"`
}

func (qf QueryFilter) Match(n Notification) bool {
	if n.IsDeleted || n.UserID != qf.UserID {
		return false
	}
	return !qf.UnreadOnly || !n.IsRead
}
