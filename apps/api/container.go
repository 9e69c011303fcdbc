package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/mwalimu/apps/api/echo"
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
	logsvc "github.com/trezcool/mwalimu/services/logger"
	mediasvc "github.com/trezcool/mwalimu/services/media"
	meetingsvc "github.com/trezcool/mwalimu/services/meeting"
	outboxsvc "github.com/trezcool/mwalimu/services/outbox"
	realtimesvc "github.com/trezcool/mwalimu/services/realtime"
	"github.com/trezcool/mwalimu/storage/database"
	"github.com/trezcool/mwalimu/storage/database/inmem"
	sqlxrepos "github.com/trezcool/mwalimu/storage/database/sqlx"
	"github.com/trezcool/mwalimu/storage/mongodb"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	RelayLoggerParam struct {
		dig.In
		Logger core.Logger `name:"relayLogger"`
	}

	// Storage is the relational side of the platform: PostgreSQL, or memory for local runs.
	Storage struct {
		dig.Out

		SQL         *sqlx.DB // nil in memory
		Tx          core.DB  // nil in memory: no transactions
		Memory      *inmemdb.DB
		Events      core.EventRepository
		Users       user.Repository
		Classes     class.Repository
		Assignments assignment.Repository
		Schedules   schedule.Repository
		Attendances attendance.Repository
		Documents   document.Repository
	}

	// SocialStorage holds blogs, messages & notifications: MongoDB when enabled, memory otherwise.
	SocialStorage struct {
		dig.Out

		Mongo         *mongodb.DB // nil when disabled
		Blogs         blog.Repository
		Messages      message.Repository
		Notifications notification.Repository
	}

	// Services are the core services, for the API & the outbox relay.
	Services struct {
		dig.Out

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

	ServicesParam struct {
		dig.In

		Conf     *core.Config
		Media    core.MediaStorage
		Meetings schedule.MeetingService

		Tx            core.DB
		Events        core.EventRepository
		UserRepo      user.Repository
		ClassRepo     class.Repository
		Assignments   assignment.Repository
		Schedules     schedule.Repository
		Attendances   attendance.Repository
		Documents     document.Repository
		Blogs         blog.Repository
		Messages      message.Repository
		Notifications notification.Repository
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRelayLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "RELAY : ", log.LstdFlags|log.Lmicroseconds)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	mem := inmemdb.NewDB()
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Warn("using in-memory storage: nothing will be persisted")
		return Storage{
			Memory:      mem,
			Events:      inmemdb.NewEventRepository(mem),
			Users:       inmemdb.NewUserRepository(mem),
			Classes:     inmemdb.NewClassRepository(mem),
			Assignments: inmemdb.NewAssignmentRepository(mem),
			Schedules:   inmemdb.NewScheduleRepository(mem),
			Attendances: inmemdb.NewAttendanceRepository(mem),
			Documents:   inmemdb.NewDocumentRepository(mem),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		SQL:         db,
		Tx:          db,
		Memory:      mem,
		Events:      sqlxrepos.NewEventRepository(db),
		Users:       sqlxrepos.NewUserRepository(db),
		Classes:     sqlxrepos.NewClassRepository(db),
		Assignments: sqlxrepos.NewAssignmentRepository(db),
		Schedules:   sqlxrepos.NewScheduleRepository(db),
		Attendances: sqlxrepos.NewAttendanceRepository(db),
		Documents:   sqlxrepos.NewDocumentRepository(db),
	}
}

func newSocialStorage(conf *core.Config, mem *inmemdb.DB, loggerParam DBLoggerParam) SocialStorage {
	if !conf.Mongo.Enabled {
		loggerParam.Logger.Warn("mongodb disabled: blogs, messages & notifications are kept in memory")
		return SocialStorage{
			Blogs:         inmemdb.NewBlogRepository(mem),
			Messages:      inmemdb.NewMessageRepository(mem),
			Notifications: inmemdb.NewNotificationRepository(mem),
		}
	}

	db, err := mongodb.Open(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up mongodb: %v", err), err)
	}
	return SocialStorage{
		Mongo:         db,
		Blogs:         mongodb.NewBlogRepository(db),
		Messages:      mongodb.NewMessageRepository(db),
		Notifications: mongodb.NewNotificationRepository(db),
	}
}

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf)
}

func newServices(p ServicesParam) Services {
	users := user.NewService(p.Conf, p.UserRepo, p.Events)
	ledger := assignment.NewService(p.Tx, p.Assignments, p.ClassRepo, users, p.Events)
	classes := class.NewService(
		p.Tx, p.ClassRepo,
		p.Attendances, p.Schedules, p.Assignments, document.ClassDependent(p.Documents),
	)
	return Services{
		Users:         users,
		Classes:       classes,
		Ledger:        ledger,
		Schedules:     schedule.NewService(p.Conf, p.Tx, p.Schedules, classes, ledger, p.Events, p.Meetings, p.Attendances),
		Attendance:    attendance.NewService(p.Tx, p.Attendances, p.Schedules, ledger, users, p.Events),
		Blogs:         blog.NewService(p.Blogs, p.Media, p.Events),
		Messages:      message.NewService(p.Messages, users, p.Events),
		Notifications: notification.NewService(p.Notifications),
		Documents:     document.NewService(p.Documents, p.ClassRepo, ledger, p.Media),
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newHub(logger core.Logger) *realtimesvc.Hub {
	return realtimesvc.NewHub(logger, prometheus.DefaultRegisterer)
}

func newRelay(
	conf *core.Config,
	events core.EventRepository,
	loggerParam RelayLoggerParam,
	email core.EmailService,
	notifications notification.Service,
	hub *realtimesvc.Hub,
) *outboxsvc.Relay {
	relay := outboxsvc.NewRelay(conf, events, loggerParam.Logger, prometheus.DefaultRegisterer)
	outboxsvc.RegisterDefaultHandlers(relay, email, notifications, hub)
	return relay
}

type ServerParam struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Media      core.MediaStorage
	Hub        *realtimesvc.Hub

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

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Media:           p.Media,
		Hub:             p.Hub,
		UserSvc:         p.Users,
		ClassSvc:        p.Classes,
		AssignmentSvc:   p.Ledger,
		ScheduleSvc:     p.Schedules,
		AttendanceSvc:   p.Attendance,
		BlogSvc:         p.Blogs,
		MessageSvc:      p.Messages,
		NotificationSvc: p.Notifications,
		DocumentSvc:     p.Documents,
	})
}

// newContainer returns the dependency injection dig.Container of the API.
func newContainer() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRelayLogger, dig.Name("relayLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newSocialStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(mediasvc.NewDiskStorage))
	must(c.Provide(meetingsvc.NewRoomService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServices))
	must(c.Provide(newHub))
	must(c.Provide(newRelay))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// StorageHandles are the connections to close on shutdown.
type StorageHandles struct {
	dig.In

	SQL   *sqlx.DB
	Mongo *mongodb.DB
}

func (h StorageHandles) close(logger core.Logger) {
	if h.SQL != nil {
		if err := h.SQL.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}
	if h.Mongo != nil {
		if err := h.Mongo.Close(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("closing mongodb: %v", err), err)
		}
	}
}
