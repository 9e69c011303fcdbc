package assignment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/class"
	"github.com/trezcool/mwalimu/core/user"
)

type (
	Repository interface {
		// InsertAssignments inserts rows, ignoring (member, class) pairs already in the ledger.
		// It returns the rows actually inserted.
		InsertAssignments(ctx context.Context, ledger Ledger, rows []Assignment, exec ...core.DBExecutor) ([]Assignment, error)
		QueryAssignments(ctx context.Context, ledger Ledger, filter QueryFilter, exec ...core.DBExecutor) ([]Assignment, error)
		DeleteAssignments(ctx context.Context, ledger Ledger, classID string, memberIDs []string, exec ...core.DBExecutor) (int, error)
		// DeleteByClass removes the class from both ledgers.
		DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		AssignStudents(ctx context.Context, data AssignStudents, admin user.User) (AssignResult, error)
		RemoveStudent(ctx context.Context, data RemoveStudent) error
		UpdateStudents(ctx context.Context, classID string, data UpdateMembers, admin user.User) (UpdateResult, error)
		// Roster returns the students of a class that still exist, ordered by name.
		Roster(ctx context.Context, classID string) ([]user.User, error)
		ClassesForStudent(ctx context.Context, studentID string) ([]class.Class, error)

		AssignTutors(ctx context.Context, data AssignTutors, admin user.User) (AssignResult, error)
		RemoveTutor(ctx context.Context, data RemoveTutor) error
		UpdateTutors(ctx context.Context, classID string, data UpdateMembers, admin user.User) (UpdateResult, error)
		Tutors(ctx context.Context, classID string) ([]user.User, error)
		ClassesForTutor(ctx context.Context, tutorID string) ([]class.Class, error)

		// MemberIDs returns the distinct members of the given classes in ledger.
		MemberIDs(ctx context.Context, ledger Ledger, classIDs ...string) ([]string, error)
		// ClassIDsOf returns the classes memberID belongs to, in either ledger.
		ClassIDsOf(ctx context.Context, memberID string) ([]string, error)
		IsMember(ctx context.Context, ledger Ledger, memberID, classID string) (bool, error)
		// WithoutStudents returns the classIDs that have no student assigned.
		WithoutStudents(ctx context.Context, classIDs []string) ([]string, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		classes class.Repository
		users   user.Service
		events  core.EventPublisher
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	classes class.Repository,
	users user.Service,
	events core.EventPublisher,
) Service {
	return &service{
		db:      db,
		repo:    repo,
		classes: classes,
		users:   users,
		events:  events,
	}
}

func (svc *service) AssignStudents(ctx context.Context, data AssignStudents, admin user.User) (AssignResult, error) {
	return svc.assign(ctx, Students, data.StudentIDs, data.ClassID, admin)
}

func (svc *service) AssignTutors(ctx context.Context, data AssignTutors, admin user.User) (AssignResult, error) {
	return svc.assign(ctx, Tutors, data.TutorIDs, data.ClassID, admin)
}

func (svc *service) RemoveStudent(ctx context.Context, data RemoveStudent) error {
	return svc.remove(ctx, Students, data.StudentID, data.ClassID)
}

func (svc *service) RemoveTutor(ctx context.Context, data RemoveTutor) error {
	return svc.remove(ctx, Tutors, data.TutorID, data.ClassID)
}

func (svc *service) UpdateStudents(ctx context.Context, classID string, data UpdateMembers, admin user.User) (UpdateResult, error) {
	return svc.update(ctx, Students, classID, data, admin)
}

func (svc *service) UpdateTutors(ctx context.Context, classID string, data UpdateMembers, admin user.User) (UpdateResult, error) {
	return svc.update(ctx, Tutors, classID, data, admin)
}

func (svc *service) Roster(ctx context.Context, classID string) ([]user.User, error) {
	return svc.members(ctx, Students, classID)
}

func (svc *service) Tutors(ctx context.Context, classID string) ([]user.User, error) {
	return svc.members(ctx, Tutors, classID)
}

func (svc *service) ClassesForStudent(ctx context.Context, studentID string) ([]class.Class, error) {
	return svc.classesOf(ctx, Students, studentID)
}

func (svc *service) ClassesForTutor(ctx context.Context, tutorID string) ([]class.Class, error) {
	return svc.classesOf(ctx, Tutors, tutorID)
}

func (svc *service) MemberIDs(ctx context.Context, ledger Ledger, classIDs ...string) ([]string, error) {
	if len(classIDs) == 0 {
		return []string{}, nil
	}
	rows, err := svc.repo.QueryAssignments(ctx, ledger, QueryFilter{ClassIDs: classIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return core.CleanStrings(MemberIDs(rows)), nil
}

func (svc *service) ClassIDsOf(ctx context.Context, memberID string) ([]string, error) {
	ids := make([]string, 0)
	for _, ledger := range []Ledger{Students, Tutors} {
		rows, err := svc.repo.QueryAssignments(ctx, ledger, QueryFilter{MemberIDs: []string{memberID}})
		if err != nil {
			return nil, errors.Wrap(err, "querying assignments")
		}
		ids = append(ids, ClassIDs(rows)...)
	}
	return core.CleanStrings(ids), nil
}

func (svc *service) IsMember(ctx context.Context, ledger Ledger, memberID, classID string) (bool, error) {
	rows, err := svc.repo.QueryAssignments(ctx, ledger, QueryFilter{ClassIDs: []string{classID}, MemberIDs: []string{memberID}})
	if err != nil {
		return false, errors.Wrap(err, "querying assignments")
	}
	return len(rows) > 0, nil
}

func (svc *service) WithoutStudents(ctx context.Context, classIDs []string) ([]string, error) {
	rows, err := svc.repo.QueryAssignments(ctx, Students, QueryFilter{ClassIDs: classIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return core.Difference(classIDs, ClassIDs(rows)), nil
}

// assign adds memberIDs to the class. Members already in the ledger are skipped;
// the call fails when none is left to add.
func (svc *service) assign(ctx context.Context, ledger Ledger, memberIDs []string, classID string, admin user.User) (AssignResult, error) {
	cls, err := svc.classes.GetClass(ctx, classID)
	if err != nil {
		return AssignResult{}, err
	}
	members, missing, err := svc.users.GetByIDs(ctx, memberIDs, ledger.Role())
	if err != nil {
		return AssignResult{}, err
	}
	if len(missing) > 0 {
		return AssignResult{}, core.NewNotFoundError(string(ledger), missing...)
	}

	existing, err := svc.repo.QueryAssignments(ctx, ledger, QueryFilter{ClassIDs: []string{classID}, MemberIDs: memberIDs})
	if err != nil {
		return AssignResult{}, errors.Wrap(err, "querying assignments")
	}
	newIDs := core.Difference(memberIDs, MemberIDs(existing))
	if len(newIDs) == 0 {
		return AssignResult{}, errAlreadyAssigned(ledger, members)
	}

	var inserted []Assignment
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		inserted, err = svc.repo.InsertAssignments(ctx, ledger, newRows(ledger, classID, newIDs, admin), exec)
		if err != nil {
			return errors.Wrap(err, "inserting assignments")
		}
		if len(inserted) == 0 { // lost a race against a concurrent assignment
			return errAlreadyAssigned(ledger, members)
		}
		events, err := membershipEvents(ledger, cls, pick(members, MemberIDs(inserted)), true)
		if err != nil {
			return err
		}
		return errors.Wrap(svc.events.Publish(ctx, events, exec), "publishing events")
	})
	if err != nil {
		return AssignResult{}, err
	}
	return AssignResult{Count: len(inserted), Assigned: inserted}, nil
}

func (svc *service) update(ctx context.Context, ledger Ledger, classID string, data UpdateMembers, admin user.User) (UpdateResult, error) {
	cls, err := svc.classes.GetClass(ctx, classID)
	if err != nil {
		return UpdateResult{}, err
	}
	added, missing, err := svc.users.GetByIDs(ctx, data.Add, ledger.Role())
	if err != nil {
		return UpdateResult{}, err
	}
	if len(missing) > 0 {
		return UpdateResult{}, core.NewNotFoundError(string(ledger), missing...)
	}
	removed, _, err := svc.users.GetByIDs(ctx, data.Remove, "")
	if err != nil {
		return UpdateResult{}, err
	}

	var res UpdateResult
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		events := make([]core.Event, 0)

		if len(data.Add) > 0 {
			inserted, err := svc.repo.InsertAssignments(ctx, ledger, newRows(ledger, classID, data.Add, admin), exec)
			if err != nil {
				return errors.Wrap(err, "inserting assignments")
			}
			res.Added = len(inserted)
			evts, err := membershipEvents(ledger, cls, pick(added, MemberIDs(inserted)), true)
			if err != nil {
				return err
			}
			events = append(events, evts...)
		}

		if len(data.Remove) > 0 {
			before, err := svc.repo.QueryAssignments(ctx, ledger, QueryFilter{ClassIDs: []string{classID}, MemberIDs: data.Remove}, exec)
			if err != nil {
				return errors.Wrap(err, "querying assignments")
			}
			if res.Removed, err = svc.repo.DeleteAssignments(ctx, ledger, classID, data.Remove, exec); err != nil {
				return errors.Wrap(err, "deleting assignments")
			}
			evts, err := membershipEvents(ledger, cls, pick(removed, MemberIDs(before)), false)
			if err != nil {
				return err
			}
			events = append(events, evts...)
		}

		return errors.Wrap(svc.events.Publish(ctx, events, exec), "publishing events")
	})
	return res, err
}

func (svc *service) remove(ctx context.Context, ledger Ledger, memberID, classID string) error {
	cls, err := svc.classes.GetClass(ctx, classID)
	if err != nil {
		return err
	}

	return core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		n, err := svc.repo.DeleteAssignments(ctx, ledger, classID, []string{memberID}, exec)
		if err != nil {
			return errors.Wrap(err, "deleting assignment")
		}
		if n == 0 {
			return core.NewNotFoundError(string(ledger)+" assignment", memberID)
		}

		member, err := svc.users.GetByID(ctx, memberID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return nil // nobody left to notify
			}
			return errors.Wrap(err, "finding user by ID")
		}
		events, err := membershipEvents(ledger, cls, []user.User{member}, false)
		if err != nil {
			return err
		}
		return errors.Wrap(svc.events.Publish(ctx, events, exec), "publishing events")
	})
}

func (svc *service) members(ctx context.Context, ledger Ledger, classID string) ([]user.User, error) {
	if _, err := svc.classes.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	ids, err := svc.MemberIDs(ctx, ledger, classID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	return svc.users.Query(ctx, &user.QueryFilter{IDs: ids}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *service) classesOf(ctx context.Context, ledger Ledger, memberID string) ([]class.Class, error) {
	if _, err := svc.users.GetByID(ctx, memberID); err != nil {
		return nil, err
	}
	rows, err := svc.repo.QueryAssignments(ctx, ledger, QueryFilter{MemberIDs: []string{memberID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	if len(rows) == 0 {
		return []class.Class{}, nil
	}
	return svc.classes.QueryClasses(ctx, &class.QueryFilter{IDs: ClassIDs(rows)}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func newRows(ledger Ledger, classID string, memberIDs []string, admin user.User) []Assignment {
	now := time.Now().UTC()
	rows := make([]Assignment, 0, len(memberIDs))
	for _, id := range memberIDs {
		rows = append(rows, Assignment{
			Ledger:     ledger,
			MemberID:   id,
			ClassID:    classID,
			AssignedBy: admin.ID,
			AssignedAt: now,
		})
	}
	return rows
}

func errAlreadyAssigned(ledger Ledger, members []user.User) error {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return core.NewConflictError(fmt.Sprintf("%ss already assigned to this class", ledger), names...)
}

// pick returns the users whose ID is in ids.
func pick(users []user.User, ids []string) []user.User {
	picked := make([]user.User, 0, len(ids))
	for _, u := range users {
		if contains(ids, u.ID) {
			picked = append(picked, u)
		}
	}
	return picked
}

// membershipEvents builds the notification (and, for students, email) events
// telling members they joined or left cls.
func membershipEvents(ledger Ledger, cls class.Class, members []user.User, joined bool) ([]core.Event, error) {
	if len(members) == 0 {
		return nil, nil
	}

	kind := core.EventClassRosterChanged
	if ledger == Tutors {
		kind = core.EventClassTutorsChanged
	}
	notice := core.Notice{
		Title:     "Class assignment",
		Body:      fmt.Sprintf("You have been assigned to %s.", cls.Name),
		Data:      map[string]interface{}{"classId": cls.ID, "joined": joined},
		Dashboard: true,
	}
	template, subject := "class_assigned", "Class enrollment"
	if !joined {
		notice.Body = fmt.Sprintf("You have been removed from %s.", cls.Name)
		template, subject = "class_removed", "Class removal"
	}

	evt, err := core.NewEvent(kind, user.IDs(members), notice)
	if err != nil {
		return nil, err
	}
	events := []core.Event{evt}

	if ledger == Students {
		for _, m := range members {
			if m.Email == "" {
				continue
			}
			evt, err := core.NewEmailEvent(&core.EmailMessage{
				To:           []mail.Address{{Name: m.Name, Address: m.Email}},
				Subject:      subject,
				TemplateName: template,
				TemplateData: map[string]interface{}{
					"Name":      m.Name,
					"ClassName": cls.Name,
					"Subject":   cls.Subject,
				},
			})
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
		}
	}
	return events, nil
}
