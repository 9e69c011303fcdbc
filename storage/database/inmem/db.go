package inmemdb

import (
	"sync"

	"github.com/google/uuid"

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
)

// DB is an in-memory store, used in tests and when running with the "memory" database engine.
// A single lock guards every table so that cascades see a consistent state.
type DB struct {
	mutex sync.RWMutex

	users         map[string]*user.User
	classes       map[string]*class.Class
	assignments   map[assignment.Ledger]map[string]*assignment.Assignment
	schedules     map[string]*schedule.Schedule
	attendances   map[string]*attendance.Attendance
	documents     map[string]*document.Document
	events        map[string]*core.Event
	blogs         map[string]*blog.Blog
	comments      map[string]*blog.Comment
	likes         map[string]*blog.Like
	messages      map[string]*message.Message
	notifications map[string]*notification.Notification
}

func NewDB() *DB {
	return &DB{
		users:   make(map[string]*user.User),
		classes: make(map[string]*class.Class),
		assignments: map[assignment.Ledger]map[string]*assignment.Assignment{
			assignment.Students: make(map[string]*assignment.Assignment),
			assignment.Tutors:   make(map[string]*assignment.Assignment),
		},
		schedules:     make(map[string]*schedule.Schedule),
		attendances:   make(map[string]*attendance.Attendance),
		documents:     make(map[string]*document.Document),
		events:        make(map[string]*core.Event),
		blogs:         make(map[string]*blog.Blog),
		comments:      make(map[string]*blog.Comment),
		likes:         make(map[string]*blog.Like),
		messages:      make(map[string]*message.Message),
		notifications: make(map[string]*notification.Notification),
	}
}

func newID() string {
	return uuid.New().String()
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
