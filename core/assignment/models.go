package assignment

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

// Ledger names one of the two membership ledgers.
type Ledger string

const (
	Students Ledger = "student"
	Tutors   Ledger = "tutor"
)

// Role returns the user role members of the ledger must carry.
func (l Ledger) Role() string {
	if l == Tutors {
		return user.RoleTutor
	}
	return user.RoleStudent
}

// Assignment is a ledger row: one member (student or tutor) assigned to one class.
type Assignment struct {
	ID         string
	Ledger     Ledger
	MemberID   string
	ClassID    string
	AssignedBy string
	AssignedAt time.Time // UTC
}

// MarshalJSON names the member `studentId` or `tutorId` depending on the ledger.
func (a Assignment) MarshalJSON() ([]byte, error) {
	memberKey := "studentId"
	if a.Ledger == Tutors {
		memberKey = "tutorId"
	}
	return json.Marshal(map[string]interface{}{
		"id":         a.ID,
		memberKey:    a.MemberID,
		"classId":    a.ClassID,
		"assignedBy": a.AssignedBy,
		"assignedAt": a.AssignedAt,
	})
}

// MemberIDs returns the member IDs of rows.
func MemberIDs(rows []Assignment) []string {
	ids := make([]string, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.MemberID)
	}
	return ids
}

// ClassIDs returns the distinct class IDs of rows.
func ClassIDs(rows []Assignment) []string {
	ids := make([]string, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.ClassID)
	}
	return core.CleanStrings(ids)
}

type QueryFilter struct {
	ClassIDs  []string
	MemberIDs []string
}

// Match reports whether a passes every set field of the filter.
func (qf QueryFilter) Match(a Assignment) bool {
	if qf.ClassIDs != nil && !contains(qf.ClassIDs, a.ClassID) {
		return false
	}
	if qf.MemberIDs != nil && !contains(qf.MemberIDs, a.MemberID) {
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

type (
	AssignStudents struct {
		StudentIDs []string `json:"studentIds" validate:"required,min=1"`
		ClassID    string   `json:"classId" validate:"required"`
	}

	AssignTutors struct {
		TutorIDs []string `json:"tutorIds" validate:"required,min=1"`
		ClassID  string   `json:"classId" validate:"required"`
	}

	RemoveStudent struct {
		StudentID string `json:"studentId" validate:"required"`
		ClassID   string `json:"classId" validate:"required"`
	}

	RemoveTutor struct {
		TutorID string `json:"tutorId" validate:"required"`
		ClassID string `json:"classId" validate:"required"`
	}

	// UpdateMembers adds and removes members of a class in one go.
	UpdateMembers struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}

	AssignResult struct {
		Count    int          `json:"count"`
		Assigned []Assignment `json:"assigned"`
	}

	UpdateResult struct {
		Added   int `json:"added"`
		Removed int `json:"removed"`
	}
)

func (as *AssignStudents) Validate(validate *validator.Validate) error {
	as.StudentIDs = core.CleanStrings(as.StudentIDs)
	as.ClassID = core.CleanString(as.ClassID)
	return validate.Struct(as)
}

func (at *AssignTutors) Validate(validate *validator.Validate) error {
	at.TutorIDs = core.CleanStrings(at.TutorIDs)
	at.ClassID = core.CleanString(at.ClassID)
	return validate.Struct(at)
}

func (rs *RemoveStudent) Validate(validate *validator.Validate) error {
	rs.StudentID = core.CleanString(rs.StudentID)
	rs.ClassID = core.CleanString(rs.ClassID)
	return validate.Struct(rs)
}

func (rt *RemoveTutor) Validate(validate *validator.Validate) error {
	rt.TutorID = core.CleanString(rt.TutorID)
	rt.ClassID = core.CleanString(rt.ClassID)
	return validate.Struct(rt)
}

func (um *UpdateMembers) Validate() error {
	um.Add = core.CleanStrings(um.Add)
	um.Remove = core.CleanStrings(um.Remove)
	if len(um.Add) == 0 && len(um.Remove) == 0 {
		return core.NewValidationError(
			nil,
			core.FieldError{Field: "add", Error: "one of add or remove is required"},
			core.FieldError{Field: "remove", Error: "one of add or remove is required"},
		)
	}
	if both := core.Intersection(um.Add, um.Remove); len(both) > 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "remove", Error: "cannot both add and remove the same member"})
	}
	return nil
}
