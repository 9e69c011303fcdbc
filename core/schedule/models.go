package schedule

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
)

// Class types
const (
	TypeOnline  = "Online"
	TypeOffline = "Offline"
)

type Schedule struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"classId"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Slot        int       `json:"slot"`
	Type        string    `json:"type"`
	MeetingLink string    `json:"meetingLink,omitempty"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

type (
	// NewSchedule plans classes on a date, slot by slot.
	NewSchedule struct {
		Date      string      `json:"date" validate:"required,date"`
		Slots     []SlotEntry `json:"slots" validate:"required,min=1,dive"`
		ClassType string      `json:"classType" validate:"omitempty,oneof=Online Offline"`
	}

	SlotEntry struct {
		Slot    int      `json:"slot" validate:"min=1,max=6"`
		Classes []string `json:"classes" validate:"required,min=1"`
	}

	UpdateSchedule struct {
		Type        string `json:"type" validate:"required,oneof=Online Offline"`
		MeetingLink string `json:"meetingLink" validate:"omitempty,url"`
	}
)

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.Date = core.CleanString(ns.Date)
	ns.ClassType = core.CleanString(ns.ClassType)
	for i := range ns.Slots {
		ns.Slots[i].Classes = core.CleanStrings(ns.Slots[i].Classes)
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.ClassType == "" {
		ns.ClassType = TypeOffline
	}
	return nil
}

// ClassIDs returns every class referenced by the entries, without duplicates.
func (ns *NewSchedule) ClassIDs() []string {
	ids := make([]string, 0)
	for _, entry := range ns.Slots {
		ids = append(ids, entry.Classes...)
	}
	return core.CleanStrings(ids)
}

func (us *UpdateSchedule) Validate(validate *validator.Validate) error {
	us.Type = core.CleanString(us.Type)
	us.MeetingLink = core.CleanString(us.MeetingLink)
	return validate.Struct(us)
}

type QueryFilter struct {
	Date     string   `query:"date"`
	From     string   `query:"from"`
	To       string   `query:"to"`
	ClassID  string   `query:"classId"`
	Slot     int      `query:"slot"`
	ClassIDs []string `query:"-"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Date = core.CleanString(qf.Date)
	qf.From = core.CleanString(qf.From)
	qf.To = core.CleanString(qf.To)
	qf.ClassID = core.CleanString(qf.ClassID)
	return validate.Struct(struct {
		Date string `json:"date" validate:"omitempty,date"`
		From string `json:"from" validate:"omitempty,date"`
		To   string `json:"to" validate:"omitempty,date"`
		Slot int    `json:"slot" validate:"omitempty,min=1,max=6"`
	}{qf.Date, qf.From, qf.To, qf.Slot})
}

// Match reports whether s passes every set field of the filter.
// Dates are YYYY-MM-DD so they compare as strings.
func (qf *QueryFilter) Match(s Schedule) bool {
	if qf == nil {
		return true
	}
	if qf.Date != "" && s.Date != qf.Date {
		return false
	}
	if qf.From != "" && s.Date < qf.From {
		return false
	}
	if qf.To != "" && s.Date > qf.To {
		return false
	}
	if qf.ClassID != "" && s.ClassID != qf.ClassID {
		return false
	}
	if qf.Slot != 0 && s.Slot != qf.Slot {
		return false
	}
	if qf.ClassIDs != nil {
		var found bool
		for _, id := range qf.ClassIDs {
			if id == s.ClassID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ClassIDs returns the distinct class IDs of schedules.
func ClassIDs(schedules []Schedule) []string {
	ids := make([]string, 0, len(schedules))
	for _, s := range schedules {
		ids = append(ids, s.ClassID)
	}
	return core.CleanStrings(ids)
}

// Dependents removes the records referencing a schedule; used to cascade schedule deletion.
type Dependents interface {
	DeleteBySchedule(ctx context.Context, scheduleID string, exec ...core.DBExecutor) (int, error)
}

// MeetingRequest describes the video meeting to create for a schedule.
type MeetingRequest struct {
	ScheduleID string
	Title      string
	Start      time.Time
	End        time.Time
}

// MeetingService creates video meeting links.
type MeetingService interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (string, error)
}
