package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/schedule"
	"github.com/trezcool/mwalimu/core/user"
)

var errCannotMark = core.NewForbiddenError("only an admin or a tutor of the class can mark attendance")

type (
	Repository interface {
		// QueryAttendances applies AND operation on available QueryFilter fields.
		QueryAttendances(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Attendance, error)
		// UpsertAttendances inserts rows, or updates existing (schedule, student) rows whose status differs.
		// It returns the number of rows written; unchanged rows are not counted.
		UpsertAttendances(ctx context.Context, rows []Attendance, exec ...core.DBExecutor) (int, error)
		DeleteBySchedule(ctx context.Context, scheduleID string, exec ...core.DBExecutor) (int, error)
		DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		// Mark records the attendance of roster students for a schedule.
		// Re-submitting identical marks writes nothing and returns a zero count.
		Mark(ctx context.Context, data MarkAttendance, marker user.User) (MarkResult, error)
		Status(ctx context.Context, scheduleID string) (StatusReport, error)
		// StudentHistory returns the attendance of a student, optionally limited to one class.
		StudentHistory(ctx context.Context, studentID, classID string) ([]Attendance, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		schedules schedule.Repository
		ledger    assignment.Service
		users     user.Service
		events    core.EventPublisher
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	schedules schedule.Repository,
	ledger assignment.Service,
	users user.Service,
	events core.EventPublisher,
) Service {
	return &service{
		db:        db,
		repo:      repo,
		schedules: schedules,
		ledger:    ledger,
		users:     users,
		events:    events,
	}
}

func (svc *service) Mark(ctx context.Context, data MarkAttendance, marker user.User) (MarkResult, error) {
	s, err := svc.schedules.GetSchedule(ctx, data.ScheduleID)
	if err != nil {
		return MarkResult{}, err
	}

	if !marker.IsAdmin() {
		isTutor, err := svc.ledger.IsMember(ctx, assignment.Tutors, marker.ID, s.ClassID)
		if err != nil {
			return MarkResult{}, err
		}
		if !(marker.IsTutor() && isTutor) {
			return MarkResult{}, errCannotMark
		}
	}

	roster, err := svc.ledger.MemberIDs(ctx, assignment.Students, s.ClassID)
	if err != nil {
		return MarkResult{}, err
	}
	if invalid := core.Difference(data.StudentIDs(), roster); len(invalid) > 0 {
		return MarkResult{}, core.NewConflictError("students not on the class roster", invalid...)
	}

	existing, err := svc.repo.QueryAttendances(ctx, QueryFilter{ScheduleIDs: []string{s.ID}, StudentIDs: roster})
	if err != nil {
		return MarkResult{}, errors.Wrap(err, "querying attendances")
	}
	current := make(map[string]string, len(existing)) // {studentID: status}
	for _, a := range existing {
		current[a.StudentID] = a.Status
	}

	now := time.Now().UTC()
	staged := make([]Attendance, 0, len(data.Students))
	for _, m := range data.Students {
		if status, ok := current[m.StudentID]; ok && status == m.Status {
			continue // unchanged
		}
		staged = append(staged, Attendance{
			ScheduleID: s.ID,
			StudentID:  m.StudentID,
			Status:     m.Status,
			MarkedBy:   marker.ID,
			MarkedAt:   now,
		})
	}
	if len(staged) == 0 {
		return MarkResult{AttendanceCount: 0}, nil
	}

	var count int
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if count, err = svc.repo.UpsertAttendances(ctx, staged, exec); err != nil {
			return errors.Wrap(err, "upserting attendances")
		}
		if count == 0 {
			return nil
		}

		recipients := make([]string, 0, len(staged))
		for _, a := range staged {
			recipients = append(recipients, a.StudentID)
		}
		evt, err := core.NewEvent(core.EventAttendanceMarked, recipients, core.Notice{
			Title:     "Attendance marked",
			Body:      fmt.Sprintf("Your attendance for the session of %s (slot %d) has been recorded.", s.Date, s.Slot),
			Data:      map[string]interface{}{"scheduleId": s.ID, "classId": s.ClassID},
			Dashboard: true,
		})
		if err != nil {
			return err
		}
		return errors.Wrap(svc.events.Publish(ctx, []core.Event{evt}, exec), "publishing events")
	})
	if err != nil {
		return MarkResult{}, err
	}
	return MarkResult{AttendanceCount: count}, nil
}

func (svc *service) Status(ctx context.Context, scheduleID string) (StatusReport, error) {
	s, err := svc.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return StatusReport{}, err
	}
	roster, err := svc.ledger.Roster(ctx, s.ClassID) // only students that still exist
	if err != nil {
		return StatusReport{}, err
	}
	rows, err := svc.repo.QueryAttendances(ctx, QueryFilter{ScheduleIDs: []string{s.ID}})
	if err != nil {
		return StatusReport{}, errors.Wrap(err, "querying attendances")
	}
	statuses := make(map[string]string, len(rows)) // {studentID: status}
	for _, a := range rows {
		statuses[a.StudentID] = a.Status
	}

	report := StatusReport{
		PresentStudents: make([]user.User, 0),
		AbsentStudents:  make([]user.User, 0),
		NotYetStudents:  make([]user.User, 0),
	}
	for _, student := range roster {
		switch statuses[student.ID] {
		case StatusPresent:
			report.PresentStudents = append(report.PresentStudents, student)
		case StatusAbsent:
			report.AbsentStudents = append(report.AbsentStudents, student)
		default:
			report.NotYetStudents = append(report.NotYetStudents, student)
		}
	}
	return report, nil
}

func (svc *service) StudentHistory(ctx context.Context, studentID, classID string) ([]Attendance, error) {
	if _, err := svc.users.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	filter := QueryFilter{StudentIDs: []string{studentID}}
	if classID != "" {
		schedules, err := svc.schedules.QuerySchedules(ctx, &schedule.QueryFilter{ClassID: classID})
		if err != nil {
			return nil, errors.Wrap(err, "querying schedules")
		}
		filter.ScheduleIDs = make([]string, 0, len(schedules))
		for _, s := range schedules {
			filter.ScheduleIDs = append(filter.ScheduleIDs, s.ID)
		}
		if len(filter.ScheduleIDs) == 0 {
			return []Attendance{}, nil
		}
	}
	return svc.repo.QueryAttendances(ctx, filter)
}
