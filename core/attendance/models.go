package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

// Statuses
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

type Attendance struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"scheduleId"`
	StudentID  string    `json:"studentId"`
	Status     string    `json:"status"`
	MarkedBy   string    `json:"markedBy"`
	MarkedAt   time.Time `json:"markedAt"` // UTC
}

type (
	MarkAttendance struct {
		ScheduleID string `json:"scheduleId" validate:"required"`
		Students   []Mark `json:"students" validate:"required,min=1,dive"`
	}

	Mark struct {
		StudentID string `json:"studentId" validate:"required"`
		Status    string `json:"status" validate:"required,oneof=Present Absent"`
	}

	MarkResult struct {
		AttendanceCount int `json:"attendanceCount"`
	}

	// StatusReport partitions a class roster by attendance for one schedule.
	StatusReport struct {
		PresentStudents []user.User `json:"presentStudents"`
		AbsentStudents  []user.User `json:"absentStudents"`
		NotYetStudents  []user.User `json:"notYetStudents"`
	}
)

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.ScheduleID = core.CleanString(ma.ScheduleID)
	for i := range ma.Students {
		ma.Students[i].StudentID = core.CleanString(ma.Students[i].StudentID)
		ma.Students[i].Status = core.CleanString(ma.Students[i].Status)
	}
	if err := validate.Struct(ma); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(ma.Students))
	dupes := make([]string, 0)
	for _, m := range ma.Students {
		if _, ok := seen[m.StudentID]; ok {
			dupes = append(dupes, m.StudentID)
			continue
		}
		seen[m.StudentID] = struct{}{}
	}
	if len(dupes) > 0 {
		return core.NewConflictError("students submitted more than once", core.CleanStrings(dupes)...)
	}
	return nil
}

// StudentIDs returns the submitted student IDs.
func (ma *MarkAttendance) StudentIDs() []string {
	ids := make([]string, 0, len(ma.Students))
	for _, m := range ma.Students {
		ids = append(ids, m.StudentID)
	}
	return ids
}

type QueryFilter struct {
	ScheduleIDs []string
	StudentIDs  []string
}

// Match reports whether a passes every set field of the filter.
func (qf QueryFilter) Match(a Attendance) bool {
	if qf.ScheduleIDs != nil && !contains(qf.ScheduleIDs, a.ScheduleID) {
		return false
	}
	if qf.StudentIDs != nil && !contains(qf.StudentIDs, a.StudentID) {
		return false
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
