package document

import (
	"time"

	"github.com/trezcool/mwalimu/core"
)

type Document struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"ownerId" db:"owner_id"`
	ClassID     string    `json:"classId,omitempty" db:"class_id"`
	Name        string    `json:"name" db:"name"`
	Path        string    `json:"-" db:"path"`
	URL         string    `json:"url" db:"url"`
	ContentType string    `json:"contentType" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"` // UTC
}

type QueryFilter struct {
	OwnerID string `query:"-"`
	ClassID string `query:"classId"`
}

func (qf *QueryFilter) Clean() {
	qf.OwnerID = core.CleanString(qf.OwnerID)
	qf.ClassID = core.CleanString(qf.ClassID)
}

func (qf QueryFilter) Match(d Document) bool {
	if qf.OwnerID != "" && d.OwnerID != qf.OwnerID {
		return false
	}
	if qf.ClassID != "" && d.ClassID != qf.ClassID {
		return false
	}
	return true
}
