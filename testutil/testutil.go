// Package testutil wires the in-memory application and creates fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/attendance"
	"github.com/trezcool/mwalimu/core/blog"
	"github.com/trezcool/mwalimu/core/class"
	"github.com/trezcool/mwalimu/core/document"
	"github.com/trezcool/mwalimu/core/message"
	"github.com/trezcool/mwalimu/core/notification"
	"github.com/trezcool/mwalimu/core/schedule"
	"github.com/trezcool/mwalimu/core/user"
	emailsvc "github.com/trezcool/mwalimu/services/email"
	mediasvc "github.com/trezcool/mwalimu/services/media"
	meetingsvc "github.com/trezcool/mwalimu/services/meeting"
	"github.com/trezcool/mwalimu/storage/database/inmem"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// App is the whole application running on in-memory storage.
type App struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Media      core.MediaStorage
	Email      core.EmailService

	Events         core.EventRepository
	UserRepo       user.Repository
	ClassRepo      class.Repository
	AssignmentRepo assignment.Repository
	ScheduleRepo   schedule.Repository
	AttendanceRepo attendance.Repository
	DocumentRepo   document.Repository

	Users         user.Service
	Classes       class.Service
	Ledger        assignment.Service
	Schedules     schedule.Service
	Attendance    attendance.Service
	Blogs         blog.Service
	Messages      message.Service
	Notifications notification.Service
	Documents     document.Service
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewApp wires a fresh App. Media files go to a temporary directory removed with the test.
func NewApp(t *testing.T) *App {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Media.Root = t.TempDir()

	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	meetings, err := meetingsvc.NewRoomService(conf)
	if err != nil {
		t.Fatalf("NewApp() failed: %v", err)
	}

	db := inmemdb.NewDB()
	app := &App{
		Conf:           conf,
		DB:             db,
		Validate:       validate,
		Translator:     translator,
		Media:          mediasvc.NewDiskStorage(conf),
		Email:          emailsvc.NewConsoleServiceMock(conf),
		Events:         inmemdb.NewEventRepository(db),
		UserRepo:       inmemdb.NewUserRepository(db),
		ClassRepo:      inmemdb.NewClassRepository(db),
		AssignmentRepo: inmemdb.NewAssignmentRepository(db),
		ScheduleRepo:   inmemdb.NewScheduleRepository(db),
		AttendanceRepo: inmemdb.NewAttendanceRepository(db),
		DocumentRepo:   inmemdb.NewDocumentRepository(db),
	}

	// in-memory storage has no transactions
	var tx core.DB

	app.Users = user.NewService(conf, app.UserRepo, app.Events)
	app.Ledger = assignment.NewService(tx, app.AssignmentRepo, app.ClassRepo, app.Users, app.Events)
	app.Classes = class.NewService(
		tx, app.ClassRepo,
		app.AttendanceRepo, app.ScheduleRepo, app.AssignmentRepo, document.ClassDependent(app.DocumentRepo),
	)
	app.Schedules = schedule.NewService(conf, tx, app.ScheduleRepo, app.Classes, app.Ledger, app.Events, meetings, app.AttendanceRepo)
	app.Attendance = attendance.NewService(tx, app.AttendanceRepo, app.ScheduleRepo, app.Ledger, app.Users, app.Events)
	app.Blogs = blog.NewService(inmemdb.NewBlogRepository(db), app.Media, app.Events)
	app.Messages = message.NewService(inmemdb.NewMessageRepository(db), app.Users, app.Events)
	app.Notifications = notification.NewService(inmemdb.NewNotificationRepository(db))
	app.Documents = document.NewService(app.DocumentRepo, app.ClassRepo, app.Ledger, app.Media)
	return app
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateRoleUser creates an active user holding role, named after uname.
func CreateRoleUser(t *testing.T, repo user.Repository, uname, role string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.cd", "", []string{role}, true)
}

func CreateClass(t *testing.T, repo class.Repository, name, subject string) class.Class {
	t.Helper()

	now := time.Now().UTC()
	c, err := repo.CreateClass(context.Background(), class.Class{
		Name:      name,
		Major:     "Science",
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

// Assign adds members to the class in ledger.
func Assign(t *testing.T, repo assignment.Repository, ledger assignment.Ledger, classID string, memberIDs ...string) {
	t.Helper()

	rows := make([]assignment.Assignment, 0, len(memberIDs))
	for _, id := range memberIDs {
		rows = append(rows, assignment.Assignment{
			Ledger:     ledger,
			MemberID:   id,
			ClassID:    classID,
			AssignedAt: time.Now().UTC(),
		})
	}
	if _, err := repo.InsertAssignments(context.Background(), ledger, rows); err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
}

func CreateSchedule(t *testing.T, repo schedule.Repository, classID, date string, slot int) schedule.Schedule {
	t.Helper()

	now := time.Now().UTC()
	rows, err := repo.InsertSchedules(context.Background(), []schedule.Schedule{{
		ClassID:   classID,
		Date:      date,
		Slot:      slot,
		Type:      schedule.TypeOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}})
	if err != nil || len(rows) != 1 {
		t.Fatalf("CreateSchedule() failed: %v", err)
	}
	return rows[0]
}

// EventsOfKind returns the outbox events of kind, in publication order.
func EventsOfKind(db *inmemdb.DB, kind string) []core.Event {
	events := make([]core.Event, 0)
	for _, evt := range db.Events() {
		if evt.Kind == kind {
			events = append(events, evt)
		}
	}
	return events
}
