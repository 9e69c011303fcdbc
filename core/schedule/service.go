package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/class"
)

var ErrNotFound = core.NewNotFoundError("schedule")

type (
	Repository interface {
		// InsertSchedules inserts rows, ignoring (class, date, slot) triples already planned.
		// It returns the rows actually inserted.
		InsertSchedules(ctx context.Context, rows []Schedule, exec ...core.DBExecutor) ([]Schedule, error)
		// QuerySchedules applies AND operation on available QueryFilter fields; results are ordered by date & slot.
		QuerySchedules(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Schedule, error)
		GetSchedule(ctx context.Context, id string, exec ...core.DBExecutor) (Schedule, error)
		UpdateSchedule(ctx context.Context, s Schedule, exec ...core.DBExecutor) (Schedule, error)
		DeleteSchedule(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		// Create plans every (class, slot) of ns and returns all the schedules of ns.Date.
		// Nothing is written unless every entry is valid.
		Create(ctx context.Context, ns NewSchedule) ([]Schedule, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Schedule, error)
		GetByID(ctx context.Context, id string) (Schedule, error)
		Update(ctx context.Context, s Schedule, us UpdateSchedule) (Schedule, error)
		// Delete removes the schedule and its attendance.
		Delete(ctx context.Context, id string) error
		// CreateMeetingLink asks the MeetingService for a link covering the schedule's slot and stores it.
		CreateMeetingLink(ctx context.Context, id string) (Schedule, error)
	}

	service struct {
		db         core.DB
		repo       Repository
		classes    class.Service
		ledger     assignment.Service
		events     core.EventPublisher
		meetings   MeetingService
		loc        *time.Location
		dependents []Dependents
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	classes class.Service,
	ledger assignment.Service,
	events core.EventPublisher,
	meetings MeetingService,
	dependents ...Dependents,
) Service {
	loc, err := time.LoadLocation(conf.Meeting.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &service{
		db:         db,
		repo:       repo,
		classes:    classes,
		ledger:     ledger,
		events:     events,
		meetings:   meetings,
		loc:        loc,
		dependents: dependents,
	}
}

func (svc *service) Create(ctx context.Context, ns NewSchedule) ([]Schedule, error) {
	classes, missing, err := svc.classes.GetByIDs(ctx, ns.ClassIDs())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(classes)) // {id: name}
	for _, c := range classes {
		names[c.ID] = c.Name
	}
	nameAll := func(ids []string) []string {
		nn := make([]string, 0, len(ids))
		for _, id := range ids {
			nn = append(nn, names[id])
		}
		return nn
	}

	// validate every entry before writing anything
	for _, entry := range ns.Slots {
		if notFound := core.Intersection(entry.Classes, missing); len(notFound) > 0 {
			return nil, core.NewConflictError("classes not found", notFound...)
		}

		empty, err := svc.ledger.WithoutStudents(ctx, entry.Classes)
		if err != nil {
			return nil, err
		}
		if len(empty) > 0 {
			return nil, core.NewConflictError("classes have no assigned students", nameAll(empty)...)
		}

		existing, err := svc.repo.QuerySchedules(ctx, &QueryFilter{Date: ns.Date, Slot: entry.Slot, ClassIDs: entry.Classes})
		if err != nil {
			return nil, errors.Wrap(err, "querying schedules")
		}
		if len(existing) > 0 {
			return nil, core.NewConflictError(
				fmt.Sprintf("classes already scheduled on %s at slot %d", ns.Date, entry.Slot),
				nameAll(ClassIDs(existing))...,
			)
		}
	}

	now := time.Now().UTC()
	rows := make([]Schedule, 0)
	for _, entry := range ns.Slots {
		for _, classID := range entry.Classes {
			rows = append(rows, Schedule{
				ClassID:   classID,
				Date:      ns.Date,
				Slot:      entry.Slot,
				Type:      ns.ClassType,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}

	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		inserted, err := svc.repo.InsertSchedules(ctx, rows, exec)
		if err != nil {
			return errors.Wrap(err, "inserting schedules")
		}
		if len(inserted) == 0 {
			return nil
		}
		evt, err := svc.membersEvent(ctx, core.EventScheduleCreated, ClassIDs(inserted), core.Notice{
			Title:     "New class schedule",
			Body:      fmt.Sprintf("%d session(s) planned on %s.", len(inserted), ns.Date),
			Data:      map[string]interface{}{"date": ns.Date},
			Dashboard: true,
		})
		if err != nil {
			return err
		}
		return errors.Wrap(svc.events.Publish(ctx, []core.Event{evt}, exec), "publishing events")
	})
	if err != nil {
		return nil, err
	}
	return svc.repo.QuerySchedules(ctx, &QueryFilter{Date: ns.Date})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Schedule, error) {
	return svc.repo.QuerySchedules(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *service) Update(ctx context.Context, s Schedule, us UpdateSchedule) (Schedule, error) {
	s.Type = us.Type
	s.MeetingLink = us.MeetingLink
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchedule(ctx, s)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetSchedule(ctx, id); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		for _, dep := range svc.dependents {
			if _, err := dep.DeleteBySchedule(ctx, id, exec); err != nil {
				return errors.Wrap(err, "deleting schedule dependents")
			}
		}
		return errors.Wrap(svc.repo.DeleteSchedule(ctx, id, exec), "deleting schedule")
	})
}

func (svc *service) CreateMeetingLink(ctx context.Context, id string) (Schedule, error) {
	s, err := svc.repo.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	cls, err := svc.classes.GetByID(ctx, s.ClassID)
	if err != nil {
		return Schedule{}, err
	}
	start, end, err := SlotTimes(s.Date, s.Slot, svc.loc)
	if err != nil {
		return Schedule{}, err
	}

	link, err := svc.meetings.CreateMeeting(ctx, MeetingRequest{
		ScheduleID: s.ID,
		Title:      cls.Name + " - " + cls.Subject,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return Schedule{}, errors.Wrap(err, "creating meeting")
	}

	s.Type = TypeOnline
	s.MeetingLink = link
	s.UpdatedAt = time.Now().UTC()

	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if s, err = svc.repo.UpdateSchedule(ctx, s, exec); err != nil {
			return errors.Wrap(err, "updating schedule")
		}
		evt, err := svc.membersEvent(ctx, core.EventScheduleUpdated, []string{s.ClassID}, core.Notice{
			Title: "Meeting link available",
			Body:  fmt.Sprintf("%s on %s (%s - %s): %s", cls.Name, s.Date, start.Format("15:04"), end.Format("15:04"), link),
			Data:  map[string]interface{}{"scheduleId": s.ID, "meetingLink": link},
		})
		if err != nil {
			return err
		}
		return errors.Wrap(svc.events.Publish(ctx, []core.Event{evt}, exec), "publishing events")
	})
	return s, err
}

// membersEvent builds an event addressed to the students & tutors of classIDs.
func (svc *service) membersEvent(ctx context.Context, kind string, classIDs []string, notice core.Notice) (core.Event, error) {
	students, err := svc.ledger.MemberIDs(ctx, assignment.Students, classIDs...)
	if err != nil {
		return core.Event{}, err
	}
	tutors, err := svc.ledger.MemberIDs(ctx, assignment.Tutors, classIDs...)
	if err != nil {
		return core.Event{}, err
	}
	return core.NewEvent(kind, core.CleanStrings(append(students, tutors...)), notice)
}
